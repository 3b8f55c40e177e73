// Package config loads crossbar's process configuration.
//
// Configuration comes from an optional YAML file; the command line layers
// flags and CROSSBAR_* environment variables on top through viper.
//
// Example file:
//
//	temporaries:
//	  - gs://my-bucket/crossbar-tmp/
//	  - s3://my-bucket/crossbar-tmp/
//	drivers:
//	  bigquery:
//	    location: EU
//	  snowflake:
//	    dsn: ${SNOWFLAKE_DSN}
//	performance:
//	  workers: 8
//	  max_streams: 4
//	observability:
//	  log_level: debug
//	  log_format: json
//
// Values of the form ${NAME} are replaced with the environment variable NAME
// before parsing. Missing variables become empty strings.
package config
