package main

// ClickHouse executable UDF: reads a dataset name per line on stdin and prints an s3 URL glob
// covering that dataset's parquet partitions, so `s3(dataset_files('orders'), 'Parquet')`
// reads a stored icejoin dataset.

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"runtime/debug"
	"strings"

	"github.com/jackc/pgx/v5"
)

func getEnvOrDefault(env, defaultVal string) string {
	if e := os.Getenv(env); e != "" {
		return e
	}
	return defaultVal
}

func main() {
	logout, err := os.Create("/tmp/out.log")
	if err != nil {
		log.Fatal("Error opening log out", err)
	}

	defer func() {
		if err := recover(); err != nil {
			log.Println("panic occurred:", err)
			log.Println(string(debug.Stack()))
		}
	}()

	log.SetOutput(logout)

	conn, err := pgx.Connect(context.Background(), getEnvOrDefault("CRDB_DSN", "postgresql://root@crdb:26257/defaultdb"))
	if err != nil {
		log.Fatal("Unable to connect to database: ", err)
	}
	defer conn.Close(context.Background())

	base := strings.TrimSuffix(getEnvOrDefault("S3_ENDPOINT", "http://minio:9000"), "/") + "/" + getEnvOrDefault("S3_BUCKET_NAME", "testbucket")

	scanner := bufio.NewScanner(os.Stdin)
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()
	for scanner.Scan() {
		name := strings.TrimSpace(strings.Split(scanner.Text(), "\t")[0])
		log.Println("got dataset:", name)

		files, err := datasetFiles(context.Background(), conn, name)
		if err != nil {
			log.Fatal("err querying", err)
		}

		line := fmt.Sprintf("%s/{%s}", base, strings.Join(files, ","))
		log.Println("writing out:", line)
		fmt.Fprintln(out, line)
		// ClickHouse waits for one output row per input row
		out.Flush()
	}
	if err := scanner.Err(); err != nil {
		log.Fatal("error reading stdin:", err)
	}
}

func datasetFiles(ctx context.Context, conn *pgx.Conn, name string) ([]string, error) {
	rows, err := conn.Query(ctx, `
	select file_key
	from dataset_partitions
	where dataset = $1
	order by num
	`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var files []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("error scanning rows: %w", err)
		}
		files = append(files, key)
	}
	return files, rows.Err()
}
