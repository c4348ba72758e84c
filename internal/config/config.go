package config

import "os"

// Config carries the environment-derived settings shared by both binaries.
type Config struct {
	TableName      string // DynamoDB table holding task records
	BucketName     string // S3 bucket for uploads and results
	AWSRegion      string
	DynamoEndpoint string // optional override for local DynamoDB
	KafkaBrokers   string // comma-separated broker list
	KafkaTopic     string // task notification topic
	KafkaGroupID   string // worker consumer group
	Stage          string
}

func Load() Config {
	return Config{
		TableName:      getenv("TABLE_NAME", "taskflow-dev-tasks"),
		BucketName:     os.Getenv("BUCKET_NAME"),
		AWSRegion:      getenv("AWS_REGION", "eu-central-1"),
		DynamoEndpoint: os.Getenv("DYNAMO_ENDPOINT"),
		KafkaBrokers:   getenv("KAFKA_BROKERS", "localhost:9092"),
		KafkaTopic:     getenv("KAFKA_TOPIC_TASKS", "taskflow-tasks"),
		KafkaGroupID:   getenv("KAFKA_GROUP_ID", "taskflow-workers"),
		Stage:          getenv("STAGE", "dev"),
	}
}

func getenv(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
