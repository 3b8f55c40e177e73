// Package csv implements the "csv:" locator for local CSV files and
// directories of CSV files.
//
// "csv:data/users.csv" names a single file; "csv:data/users/" (trailing
// slash) names a directory whose *.csv files each form one stream.
// Compressed files (users.csv.gz, ...) are decoded on read.
package csv

import (
	"context"
	encsv "encoding/csv"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/ajitpratap0/crossbar/pkg/bridge"
	"github.com/ajitpratap0/crossbar/pkg/compression"
	"github.com/ajitpratap0/crossbar/pkg/connector/registry"
	"github.com/ajitpratap0/crossbar/pkg/errors"
	"github.com/ajitpratap0/crossbar/pkg/locator"
	"github.com/ajitpratap0/crossbar/pkg/logger"
	"github.com/ajitpratap0/crossbar/pkg/schema"
	"github.com/ajitpratap0/crossbar/pkg/stream"
)

const scheme = "csv:"

func init() {
	registry.Register(registry.Driver{
		Kind:     locator.KindCSV,
		Features: []string{"local_data", "write_local_data", "schema_discovery", "if_exists=error|append|overwrite"},
		Parse:    func(s string) (locator.Locator, error) { return Parse(s) },
	})
}

// Locator is a local CSV file or directory
type Locator struct {
	locator.Base
	path string
}

// Parse parses "csv:PATH"
func Parse(s string) (*Locator, error) {
	if !strings.HasPrefix(s, scheme) {
		return nil, errors.Newf(errors.ErrorTypeParse, "expected %q to begin with %s", s, scheme)
	}
	path := s[len(scheme):]
	if path == "" {
		return nil, errors.Newf(errors.ErrorTypeParse, "locator %q has no path", s)
	}
	return &Locator{Base: locator.NewBase(locator.KindCSV), path: path}, nil
}

// String renders the locator; Parse(l.String()) yields an equal locator
func (l *Locator) String() string {
	return scheme + l.path
}

// Path returns the local path
func (l *Locator) Path() string {
	return l.path
}

// IsDirectory reports whether the locator names a directory
func (l *Locator) IsDirectory() bool {
	return strings.HasSuffix(l.path, "/")
}

// LocalData reads each file as one CSV stream
func (l *Locator) LocalData(ctx context.Context, _ *schema.Table, opts locator.Options) (*stream.Stream[*stream.CsvStream], error) {
	if err := opts.Query.RejectUnless(locator.KindCSV); err != nil {
		return nil, err
	}
	files, err := l.files()
	if err != nil {
		return nil, err
	}
	chunkSize := chunkSize(opts.FromArgs)

	return stream.Generate(ctx, func(ctx context.Context, emit stream.Emit[*stream.CsvStream]) error {
		for _, f := range files {
			r, err := openFile(f.path)
			if err != nil {
				return err
			}
			logger.FromContext(ctx).Debug("reading csv file", zap.String("path", f.path))
			if err := emit(&stream.CsvStream{Name: f.name, Data: stream.FromReader(ctx, r, chunkSize)}); err != nil {
				r.Close()
				return err
			}
		}
		return nil
	}), nil
}

type csvFile struct {
	path string
	name string
}

func (l *Locator) files() ([]csvFile, error) {
	if !l.IsDirectory() {
		if _, err := os.Stat(l.path); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "cannot read csv file").WithDetail("locator", l.String())
		}
		return []csvFile{{path: l.path, name: stream.NameFromPath(filepath.Base(l.path))}}, nil
	}

	var files []csvFile
	err := filepath.WalkDir(l.path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(compression.TrimSuffix(path), ".csv") {
			return nil
		}
		rel, err := filepath.Rel(l.path, path)
		if err != nil {
			return err
		}
		files = append(files, csvFile{path: path, name: stream.NameFromPath(filepath.ToSlash(rel))})
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "cannot list csv directory").WithDetail("locator", l.String())
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.name
	}
	if err := stream.DuplicateName(names); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeValidation, "csv files would share a stream name").WithDetail("locator", l.String())
	}
	return files, nil
}

type fileReader struct {
	io.ReadCloser
	file *os.File
}

func (r fileReader) Close() error {
	err := r.ReadCloser.Close()
	if cerr := r.file.Close(); err == nil {
		err = cerr
	}
	return err
}

func openFile(path string) (io.ReadCloser, error) {
	f, err := os.Open(path) //nolint:gosec // G304: path comes from the locator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "cannot open csv file").WithDetail("path", path)
	}
	r, err := compression.NewReader(compression.FromName(path), f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return fileReader{ReadCloser: r, file: f}, nil
}

// DefaultSampleRows is how many rows Schema reads to infer column types
const DefaultSampleRows = 1000

// Schema infers a table from the header and leading rows of the first
// file. The sample size is the sample_rows driver argument.
func (l *Locator) Schema(ctx context.Context, args locator.DriverArgs) (*schema.Table, error) {
	files, err := l.files()
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.Newf(errors.ErrorTypeNotFound, "no csv files in %s", l.path).WithDetail("locator", l.String())
	}
	sample := DefaultSampleRows
	if n, err := strconv.Atoi(args.Get("sample_rows", "")); err == nil && n > 0 {
		sample = n
	}
	name := stream.NameFromPath(filepath.Base(strings.TrimSuffix(l.path, "/")))

	inferred := bridge.Go(ctx, func() (*schema.Table, error) {
		r, err := openFile(files[0].path)
		if err != nil {
			return nil, err
		}
		defer r.Close()

		rdr := encsv.NewReader(r)
		rdr.FieldsPerRecord = -1
		header, err := rdr.Read()
		if err == io.EOF {
			return nil, errors.Newf(errors.ErrorTypeData, "%s has no header row", files[0].path)
		}
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeData, "cannot read csv header").WithDetail("path", files[0].path)
		}
		ti := schema.NewTypeInference(header)
		for ti.Rows() < sample {
			row, err := rdr.Read()
			if err == io.EOF {
				break
			}
			if err != nil {
				return nil, errors.Wrap(err, errors.ErrorTypeData, "cannot parse csv").WithDetail("path", files[0].path)
			}
			ti.Observe(row)
		}
		logger.FromContext(ctx).Debug("inferred csv schema",
			zap.String("path", files[0].path),
			zap.Int("sampled_rows", ti.Rows()))
		return ti.Table(name)
	})
	return inferred.Wait(ctx)
}

// chunkSize honours the chunk_size driver argument
func chunkSize(args locator.DriverArgs) int {
	if n, err := strconv.Atoi(args.Get("chunk_size", "")); err == nil && n > 0 {
		return n
	}
	return stream.DefaultChunkSize
}

// WriteLocalData writes each stream to its own file in a directory, or
// concatenates all streams into a single file keeping only the first header.
func (l *Locator) WriteLocalData(ctx context.Context, _ *schema.Table, data *stream.Stream[*stream.CsvStream], opts locator.Options) (*stream.Stream[*bridge.Future[struct{}]], error) {
	appendToFile, err := l.prepare(opts.IfExists)
	if err != nil {
		return nil, err
	}
	pool := bridge.FromContext(ctx)
	first := true
	if l.IsDirectory() {
		data = stream.UniqueNames(ctx, data)
	}

	return locator.LoadEach(ctx, data, func(ctx context.Context, s *stream.CsvStream) *bridge.Future[struct{}] {
		path := l.path
		flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
		body := s.Data
		if l.IsDirectory() {
			path = filepath.Join(l.path, filepath.FromSlash(s.Name)+".csv")
			flags = os.O_CREATE | os.O_WRONLY | os.O_EXCL
		} else {
			if !first || appendToFile {
				body = stream.SkipHeader(ctx, body)
			}
			first = false
		}
		return bridge.Run(ctx, pool, func() (struct{}, error) {
			return struct{}{}, writeFile(context.WithoutCancel(ctx), path, flags, body)
		})
	}), nil
}

// prepare applies ifExists. For a single file it reports whether new rows
// are appended to existing content.
func (l *Locator) prepare(ifExists locator.IfExists) (bool, error) {
	if l.IsDirectory() {
		entries, err := os.ReadDir(l.path)
		exists := err == nil && len(entries) > 0
		switch {
		case exists && ifExists == locator.IfExistsError:
			return false, errors.Newf(errors.ErrorTypeLifecycle, "directory %s already contains files", l.path).
				WithDetail("locator", l.String())
		case exists && ifExists == locator.IfExistsOverwrite:
			if err := os.RemoveAll(l.path); err != nil {
				return false, errors.Wrap(err, errors.ErrorTypeFile, "cannot clear directory").WithDetail("locator", l.String())
			}
		}
		if err := os.MkdirAll(l.path, 0o755); err != nil {
			return false, errors.Wrap(err, errors.ErrorTypeFile, "cannot create directory").WithDetail("locator", l.String())
		}
		return false, nil
	}

	info, err := os.Stat(l.path)
	exists := err == nil
	switch {
	case exists && ifExists == locator.IfExistsError:
		return false, errors.Newf(errors.ErrorTypeLifecycle, "file %s already exists", l.path).WithDetail("locator", l.String())
	case exists && ifExists == locator.IfExistsOverwrite:
		// every stream appends, so old content goes now even if no
		// stream arrives
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return false, errors.Wrap(err, errors.ErrorTypeFile, "cannot remove existing file").WithDetail("locator", l.String())
		}
	}
	if dir := filepath.Dir(l.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return false, errors.Wrap(err, errors.ErrorTypeFile, "cannot create directory").WithDetail("locator", l.String())
		}
	}
	return exists && ifExists == locator.IfExistsAppend && info.Size() > 0, nil
}

func writeFile(ctx context.Context, path string, flags int, data *stream.Stream[[]byte]) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "cannot create directory").WithDetail("path", path)
	}
	f, err := os.OpenFile(path, flags, 0o644) //nolint:gosec // G304: path comes from the locator
	if os.IsExist(err) {
		return errors.Newf(errors.ErrorTypeLifecycle, "file %s already exists", path).WithDetail("path", path)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "cannot open csv file for writing").WithDetail("path", path)
	}
	w, err := compression.NewWriter(compression.FromName(path), f, compression.Default)
	if err != nil {
		f.Close()
		return err
	}
	if _, err := stream.CopyTo(ctx, w, data); err != nil {
		w.Close()
		f.Close()
		return errors.Wrap(err, errors.TypeOf(err), "error writing csv file").WithDetail("path", path)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "error finishing csv file").WithDetail("path", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "error closing csv file").WithDetail("path", path)
	}
	return nil
}
