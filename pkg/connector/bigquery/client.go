package bigquery

import (
	"context"
	"net/http"

	bq "cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"

	"github.com/ajitpratap0/crossbar/pkg/connector/gs"
	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/locator"
	"github.com/ajitpratap0/crossbar/pkg/logger"
)

// LoadJob loads CSV objects into a table
type LoadJob struct {
	Table  TableName
	URIs   []string
	Schema bq.Schema
	Write  bq.TableWriteDisposition
}

// ExtractJob exports a table as CSV objects matching a wildcard URI
type ExtractJob struct {
	Table TableName
	URI   string
}

// Client is the subset of BigQuery the driver uses. Every method blocks
// until the job it starts has finished.
type Client interface {
	Load(ctx context.Context, job LoadJob) error
	Extract(ctx context.Context, job ExtractJob) error
	QueryToTable(ctx context.Context, sql string, dest TableName) error
	Schema(ctx context.Context, table TableName) (bq.Schema, error)
	Exists(ctx context.Context, table TableName) (bool, error)
	Delete(ctx context.Context, table TableName) error
	Close() error
}

// Connector opens a client billed to project
type Connector func(ctx context.Context, project string, args locator.DriverArgs) (Client, error)

// Connect creates a BigQuery client using the same credential arguments
// as the gs driver.
func Connect(ctx context.Context, project string, args locator.DriverArgs) (Client, error) {
	client, err := bq.NewClient(ctx, project, gs.ClientOptions(args)...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create BigQuery client")
	}
	if loc := args.Get("location", ""); loc != "" {
		client.Location = loc
	}
	return &bqClient{client: client}, nil
}

type bqClient struct {
	client *bq.Client
}

func (c *bqClient) table(t TableName) *bq.Table {
	return c.client.DatasetInProject(t.Project, t.Dataset).Table(t.Table)
}

// waitJob waits for job and reports its final status
func waitJob(ctx context.Context, job *bq.Job, what string) error {
	log := logger.FromContext(ctx).With(zap.String("job_id", job.ID()))
	status, err := job.Wait(ctx)
	if err != nil {
		return classify(err, what+" job failed")
	}
	if err := status.Err(); err != nil {
		for _, detail := range status.Errors {
			log.Warn("job error", zap.String("reason", detail.Reason), zap.String("message", detail.Message))
		}
		return classify(err, what+" job failed")
	}
	switch stats := status.Statistics.Details.(type) {
	case *bq.LoadStatistics:
		log.Info("load job completed", zap.Int64("input_file_bytes", stats.InputFileBytes), zap.Int64("output_rows", stats.OutputRows))
	case *bq.ExtractStatistics:
		log.Info("extract job completed", zap.Int64s("destination_uri_file_counts", stats.DestinationURIFileCounts))
	default:
		log.Info(what + " job completed")
	}
	return nil
}

func (c *bqClient) Load(ctx context.Context, job LoadJob) error {
	ref := bq.NewGCSReference(job.URIs...)
	ref.SourceFormat = bq.CSV
	ref.SkipLeadingRows = 1
	ref.AllowQuotedNewlines = true
	ref.Schema = job.Schema

	loader := c.table(job.Table).LoaderFrom(ref)
	loader.WriteDisposition = job.Write
	loader.CreateDisposition = bq.CreateIfNeeded
	loader.Labels = map[string]string{"source": "crossbar"}

	j, err := loader.Run(ctx)
	if err != nil {
		return classify(err, "failed to submit BigQuery load job")
	}
	return waitJob(ctx, j, "load")
}

func (c *bqClient) Extract(ctx context.Context, job ExtractJob) error {
	ref := bq.NewGCSReference(job.URI)
	ref.DestinationFormat = bq.CSV

	extractor := c.table(job.Table).ExtractorTo(ref)
	extractor.DisableHeader = false
	extractor.Labels = map[string]string{"source": "crossbar"}

	j, err := extractor.Run(ctx)
	if err != nil {
		return classify(err, "failed to submit BigQuery extract job")
	}
	return waitJob(ctx, j, "extract")
}

func (c *bqClient) QueryToTable(ctx context.Context, sql string, dest TableName) error {
	q := c.client.Query(sql)
	q.Dst = c.table(dest)
	q.WriteDisposition = bq.WriteTruncate
	q.CreateDisposition = bq.CreateIfNeeded
	q.Labels = map[string]string{"source": "crossbar"}

	j, err := q.Run(ctx)
	if err != nil {
		return classify(err, "failed to submit BigQuery query")
	}
	return waitJob(ctx, j, "query")
}

func (c *bqClient) Schema(ctx context.Context, t TableName) (bq.Schema, error) {
	md, err := c.table(t).Metadata(ctx)
	if err != nil {
		return nil, classify(err, "cannot read table metadata")
	}
	return md.Schema, nil
}

func (c *bqClient) Exists(ctx context.Context, t TableName) (bool, error) {
	_, err := c.table(t).Metadata(ctx)
	if err == nil {
		return true, nil
	}
	if err := classify(err, "cannot read table metadata"); !errors.IsType(err, errors.ErrorTypeNotFound) {
		return false, err
	}
	return false, nil
}

func (c *bqClient) Delete(ctx context.Context, t TableName) error {
	return classify(c.table(t).Delete(ctx), "cannot delete table")
}

func (c *bqClient) Close() error {
	return c.client.Close()
}

// classify maps BigQuery API errors onto crossbar error types
func classify(err error, msg string) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return errors.Wrap(err, errors.ErrorTypeAuthentication, msg)
		case http.StatusNotFound:
			return errors.Wrap(err, errors.ErrorTypeNotFound, msg)
		case http.StatusConflict:
			return errors.Wrap(err, errors.ErrorTypeLifecycle, msg)
		case http.StatusTooManyRequests:
			return errors.Wrap(err, errors.ErrorTypeRateLimit, msg)
		case http.StatusBadRequest:
			return errors.Wrap(err, errors.ErrorTypeQuery, msg)
		}
	}
	var jobErr *bq.Error
	if errors.As(err, &jobErr) {
		switch jobErr.Reason {
		case "duplicate":
			return errors.Wrap(err, errors.ErrorTypeLifecycle, msg)
		case "notFound":
			return errors.Wrap(err, errors.ErrorTypeNotFound, msg)
		case "invalid", "invalidQuery":
			return errors.Wrap(err, errors.ErrorTypeQuery, msg)
		}
	}
	return errors.Wrap(err, errors.ErrorTypeConnection, msg)
}
