// Package all registers every built-in driver.
package all

import (
	// Drivers register themselves with the registry from init.
	_ "github.com/ajitpratap0/crossbar/pkg/connector/bigquery"
	_ "github.com/ajitpratap0/crossbar/pkg/connector/csv"
	_ "github.com/ajitpratap0/crossbar/pkg/connector/gs"
	_ "github.com/ajitpratap0/crossbar/pkg/connector/mysql"
	_ "github.com/ajitpratap0/crossbar/pkg/connector/postgres"
	_ "github.com/ajitpratap0/crossbar/pkg/connector/s3"
	_ "github.com/ajitpratap0/crossbar/pkg/connector/snowflake"
)
