// Package crossbar copies tables between databases, data warehouses, object
// stores and local CSV files.
//
// Every backend is addressed by a locator string whose scheme selects a
// driver:
//
//	csv:data/users.csv                  a local file, or a directory ending in /
//	postgres://host/db#schema.table     a PostgreSQL table
//	mysql://host/db#table               a MySQL table
//	gs://bucket/dir/                    Google Cloud Storage objects
//	s3://bucket/dir/                    Amazon S3 objects
//	bigquery:project:dataset.table      a BigQuery table
//	snowflake:db.schema.table           a Snowflake table
//
// # Architecture
//
// A transfer moves one table described by a backend-neutral schema
// (pkg/schema). When the destination can read the source itself, such as a
// BigQuery load job reading from Cloud Storage, the destination performs a
// direct transfer. Otherwise the source is read as a stream of named CSV
// streams (pkg/stream) and the destination loads them one after another,
// staging through temporary storage when a warehouse needs files in its own
// cloud.
//
// Blocking client calls run on a bounded worker pool (pkg/bridge) and hand
// back futures, so reading, encoding and loading overlap without unbounded
// goroutines. Which pairs can transfer directly is decided in one table in
// pkg/locator.
//
// # Quick Start
//
//	crossbar cp --if-exists=overwrite \
//	    csv:users.csv postgres://localhost/app#public.users
//
//	crossbar cp --temporary=gs://bucket/tmp/ \
//	    postgres://localhost/app#public.users bigquery:proj:sales.users
//
// Drivers register themselves on import; import pkg/connector/all to get
// all of them.
package crossbar
