package utils

import "os"

var (
	HTTP_PORT = GetEnvOrDefault("HTTP_PORT", "8080")

	CRDB_DSN = os.Getenv("CRDB_DSN")

	AWS_ACCESS_KEY_ID     = os.Getenv("AWS_ACCESS_KEY_ID")
	AWS_SECRET_ACCESS_KEY = os.Getenv("AWS_SECRET_ACCESS_KEY")
	AWS_DEFAULT_REGION    = GetEnvOrDefault("AWS_DEFAULT_REGION", "us-east-1")

	S3_BUCKET_NAME = os.Getenv("S3_BUCKET_NAME")
	S3_ENDPOINT    = os.Getenv("S3_ENDPOINT")

	// DATASTORE is either "disk" or "s3"
	DATASTORE = GetEnvOrDefault("DATASTORE", "disk")
	DATA_DIR  = GetEnvOrDefault("DATA_DIR", "./data")
	// METASTORE is either "memory" or "crdb"
	METASTORE = GetEnvOrDefault("METASTORE", "memory")

	// JOIN_WORKERS bounds the shuffle and bucket join pools, 0 means GOMAXPROCS
	JOIN_WORKERS = GetEnvOrDefaultInt("JOIN_WORKERS", 0)
	// SHUFFLE_MAX_BUCKET_ROWS caps how many rows one side may route into a single bucket, 0 is unlimited
	SHUFFLE_MAX_BUCKET_ROWS = GetEnvOrDefaultInt("SHUFFLE_MAX_BUCKET_ROWS", 0)

	CSV_BLOCKSIZE = GetEnvOrDefault("CSV_BLOCKSIZE", "64 MiB")
)
