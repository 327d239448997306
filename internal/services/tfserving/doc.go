// Package tfserving talks to a TensorFlow Serving REST endpoint.
//
// The client posts row-major float tensors to <url>/v1/models/<name>:predict
// using the "instances" request format and flattens the returned
// "predictions" into a rows by columns matrix. It also reports model
// availability through the model status endpoint so the status command and
// preflight checks can tell whether a classifier is loaded.
package tfserving
