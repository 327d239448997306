// Package inference defines the classifier boundary used by the scorers.
//
// A Classifier accepts a batch tensor and returns one row of outputs per
// batch element. Models groups the video ensemble and the audio classifier;
// it is built once at startup by Load, passed by pointer to every scorer and
// never mutated afterwards. Tests construct Models directly with stub
// classifiers.
package inference
