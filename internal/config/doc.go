// Package config loads, normalizes, and validates deepscan configuration data.
//
// It supplies repository defaults (thresholds, frame sampling, MFCC shape,
// model endpoints), expands user paths including tilde shortcuts, reads TOML
// files, and honours environment fallbacks such as TEMP_DIR, TF_SERVING_URL
// and DEEPSCAN_API_TOKEN. Values are fixed once loaded; nothing in the
// service reconfigures itself at runtime.
package config
