package internal

// Database is an optional sink for log messages; cards and payments are never stored
type Database interface {
	WriteLogMessage(data Data) error
	ReadLog() ([]FeatureLogMessage, error)
}

type Data interface {
	DataType() string
}
