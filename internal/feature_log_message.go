package internal

import "time"

const FeatureLogMessageType = "featureLogMessage"

// FeatureLogMessage is one gateway or flow event; Id is a transaction id or flow name
type FeatureLogMessage struct {
	Time       string    `json:"time" bson:"time"`
	TimeStamp  time.Time `json:"timestamp" bson:"timestamp"`
	Feature    string    `json:"feature" bson:"feature"`
	Id         string    `json:"id" bson:"id"`
	Text       string    `json:"text" bson:"text"`
	Importance string    `json:"importance" bson:"importance"`
}

func (fm *FeatureLogMessage) MessageType() string {
	return FeatureLogMessageType
}

func (fm *FeatureLogMessage) DataType() string {
	return FeatureLogMessageType
}
