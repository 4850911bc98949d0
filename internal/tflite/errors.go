package tflite

import "errors"

var (
	ErrTruncated          = errors.New("truncated tflite file")
	ErrInvalidIdentifier  = errors.New("not a TFL3 flatbuffer")
	ErrUnsupportedOptions = errors.New("unsupported builtin options")
	ErrUnsupportedFeature = errors.New("unsupported model feature")
)
