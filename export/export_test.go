package export

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robertmeta/report-cli/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves documents from a map and counts calls.
type fakeFetcher struct {
	docs    map[string]*model.Document
	err     error
	calls   atomic.Int32
	gate    chan struct{} // when set, FetchReport blocks until it is closed
	entered chan struct{}
}

func (f *fakeFetcher) FetchReport(ctx context.Context, reportID string) (*model.Document, error) {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	doc, ok := f.docs[reportID]
	if !ok {
		return nil, errors.New("not found")
	}
	return doc, nil
}

// memSaver keeps saved files in memory.
type memSaver struct {
	mu    sync.Mutex
	files []File
	err   error
}

func (s *memSaver) Save(_ context.Context, f File) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files = append(s.files, f)
	return "mem://" + f.Name, nil
}

type memRecorder struct {
	mu        sync.Mutex
	downloads []*model.Download
	err       error
}

func (r *memRecorder) RecordDownload(_ context.Context, d *model.Download) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.downloads = append(r.downloads, d)
	return r.err
}

// minimalPDF builds a one-page PDF with a correct cross-reference table.
func minimalPDF() []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	objs := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 >>",
		"<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>",
	}
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = b.Len()
		fmt.Fprintf(&b, "%d 0 obj\n%s\nendobj\n", i+1, o)
	}
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&b, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&b, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return b.Bytes()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func docFor(id string, data []byte) *model.Document {
	return &model.Document{
		FormattedPDF: base64.StdEncoding.EncodeToString(data),
		Meta:         model.DocumentMeta{ReportID: id},
	}
}

func TestExporter_Download(t *testing.T) {
	data := []byte("%PDF-1.4 not really a pdf")
	fetcher := &fakeFetcher{docs: map[string]*model.Document{"R-100": docFor("R-100", data)}}
	saver := &memSaver{}

	e := New(fetcher, saver, WithLogger(discardLogger()), WithVerify(VerifyOff))

	res, err := e.Download(context.Background(), "R-100")
	require.NoError(t, err)
	require.NotNil(t, res)

	assert.Equal(t, "R-100.pdf", res.FileName)
	assert.Equal(t, "mem://R-100.pdf", res.Location)
	assert.Equal(t, len(data), res.Bytes)
	assert.False(t, res.Verified)
	assert.Len(t, res.SHA256, 64)

	require.Len(t, saver.files, 1)
	assert.Equal(t, data, saver.files[0].Data, "decoded bytes must match the input byte for byte")
	assert.Equal(t, MIMEType, saver.files[0].MIMEType)
}

func TestExporter_Download_BinaryRoundTrip(t *testing.T) {
	// Every byte value must survive decoding unchanged.
	data := make([]byte, 256)
	for i := range data {
		data[i] = byte(i)
	}
	fetcher := &fakeFetcher{docs: map[string]*model.Document{"R-1": docFor("R-1", data)}}
	saver := &memSaver{}

	_, err := New(fetcher, saver, WithLogger(discardLogger()), WithVerify(VerifyOff)).Download(context.Background(), "R-1")
	require.NoError(t, err)
	assert.Equal(t, data, saver.files[0].Data)
}

func TestExporter_Download_NoPayload(t *testing.T) {
	var logs bytes.Buffer
	fetcher := &fakeFetcher{docs: map[string]*model.Document{
		"R-100": {Meta: model.DocumentMeta{ReportID: "R-100"}},
	}}
	saver := &memSaver{}

	e := New(fetcher, saver, WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))

	res, err := e.Download(context.Background(), "R-100")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrNoDocument)
	assert.Empty(t, saver.files, "save must not be invoked without a payload")
	assert.Contains(t, logs.String(), "no PDF data found in report")
}

func TestExporter_Download_FetchFailure(t *testing.T) {
	fetchErr := errors.New("connection refused")
	fetcher := &fakeFetcher{err: fetchErr}
	saver := &memSaver{}

	res, err := New(fetcher, saver, WithLogger(discardLogger())).Download(context.Background(), "R-100")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, fetchErr)
	assert.Empty(t, saver.files)
	assert.Equal(t, int32(1), fetcher.calls.Load(), "no retries")
}

func TestExporter_Download_BadBase64(t *testing.T) {
	fetcher := &fakeFetcher{docs: map[string]*model.Document{
		"R-100": {FormattedPDF: "!!not base64!!"},
	}}
	saver := &memSaver{}

	res, err := New(fetcher, saver, WithLogger(discardLogger())).Download(context.Background(), "R-100")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrDecode)
	assert.Empty(t, saver.files)
}

func TestDecode(t *testing.T) {
	want := []byte("%PDF-1.4 x")
	padded := base64.StdEncoding.EncodeToString(want)

	tests := []struct {
		name    string
		payload string
		wantErr bool
	}{
		{name: "padded", payload: padded},
		{name: "unpadded", payload: base64.RawStdEncoding.EncodeToString(want)},
		{name: "space inside", payload: padded[:8] + " " + padded[8:]},
		{name: "CRLF wrapped", payload: padded[:4] + "\r\n" + padded[4:8] + "\r\n" + padded[8:] + "\r\n"},
		{name: "tabs and form feeds", payload: "\t" + padded[:6] + "\f" + padded[6:]},
		{name: "padding in the middle", payload: "JV==BERi", wantErr: true},
		{name: "dangling single character", payload: "JVBER", wantErr: true},
		{name: "not base64", payload: "!!not base64!!", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode(tt.payload)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrDecode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestExporter_Download_FileNameFallback(t *testing.T) {
	fetcher := &fakeFetcher{docs: map[string]*model.Document{
		"R-7": {FormattedPDF: base64.StdEncoding.EncodeToString([]byte("x"))},
	}}
	saver := &memSaver{}

	res, err := New(fetcher, saver, WithLogger(discardLogger()), WithVerify(VerifyOff)).Download(context.Background(), "R-7")
	require.NoError(t, err)
	assert.Equal(t, "R-7.pdf", res.FileName)
}

func TestExporter_Download_SaveFailure(t *testing.T) {
	fetcher := &fakeFetcher{docs: map[string]*model.Document{"R-1": docFor("R-1", []byte("x"))}}
	saver := &memSaver{err: errors.New("disk full")}
	rec := &memRecorder{}

	e := New(fetcher, saver, WithLogger(discardLogger()), WithVerify(VerifyOff), WithRecorder(rec, "DEMO"))
	res, err := e.Download(context.Background(), "R-1")
	assert.Nil(t, res)
	assert.ErrorIs(t, err, ErrSave)
	assert.ErrorContains(t, err, "disk full")
	assert.Empty(t, rec.downloads)
}

func TestExporter_Verify(t *testing.T) {
	garbage := []byte("definitely not a PDF document")

	tests := []struct {
		name         string
		mode         VerifyMode
		data         []byte
		wantErr      error
		wantVerified bool
		wantPages    int
	}{
		{name: "strict rejects garbage", mode: VerifyStrict, data: garbage, wantErr: ErrInvalidDocument},
		{name: "warn saves garbage", mode: VerifyWarn, data: garbage},
		{name: "off skips the check", mode: VerifyOff, data: garbage},
		{name: "strict accepts a PDF", mode: VerifyStrict, data: minimalPDF(), wantVerified: true, wantPages: 1},
		{name: "warn verifies a PDF", mode: VerifyWarn, data: minimalPDF(), wantVerified: true, wantPages: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fetcher := &fakeFetcher{docs: map[string]*model.Document{"R-1": docFor("R-1", tt.data)}}
			saver := &memSaver{}

			res, err := New(fetcher, saver, WithLogger(discardLogger()), WithVerify(tt.mode)).Download(context.Background(), "R-1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, res)
				assert.Empty(t, saver.files)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantVerified, res.Verified)
			assert.Equal(t, tt.wantPages, res.Pages)
			assert.Len(t, saver.files, 1)
		})
	}
}

func TestExporter_RecordsHistory(t *testing.T) {
	fetcher := &fakeFetcher{docs: map[string]*model.Document{"R-1": docFor("R-1", []byte("abc"))}}
	rec := &memRecorder{}
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	e := New(fetcher, &memSaver{}, WithLogger(discardLogger()), WithVerify(VerifyOff), WithRecorder(rec, "DEMO"))
	e.now = func() time.Time { return fixed }

	_, err := e.Download(context.Background(), "R-1")
	require.NoError(t, err)

	require.Len(t, rec.downloads, 1)
	d := rec.downloads[0]
	assert.Equal(t, "R-1", d.ReportID)
	assert.Equal(t, "DEMO", d.Aerodrome)
	assert.Equal(t, "mem://R-1.pdf", d.Path)
	assert.Equal(t, int64(3), d.Bytes)
	assert.Equal(t, fixed, d.DownloadedAt)
}

func TestExporter_RecorderFailureIsNotFatal(t *testing.T) {
	fetcher := &fakeFetcher{docs: map[string]*model.Document{"R-1": docFor("R-1", []byte("abc"))}}
	rec := &memRecorder{err: errors.New("database is locked")}

	res, err := New(fetcher, &memSaver{}, WithLogger(discardLogger()), WithVerify(VerifyOff), WithRecorder(rec, "DEMO")).
		Download(context.Background(), "R-1")
	require.NoError(t, err)
	assert.NotNil(t, res)
}

func TestExporter_ConcurrentDuplicatesShareFetch(t *testing.T) {
	fetcher := &fakeFetcher{
		docs:    map[string]*model.Document{"R-1": docFor("R-1", []byte("abc"))},
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 2),
	}
	saver := &memSaver{}
	e := New(fetcher, saver, WithLogger(discardLogger()), WithVerify(VerifyOff))

	var wg sync.WaitGroup
	errs := make([]error, 2)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = e.Download(context.Background(), "R-1")
	}()
	<-fetcher.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[1] = e.Download(context.Background(), "R-1")
	}()
	// Give the second call time to join the in-flight fetch.
	time.Sleep(50 * time.Millisecond)
	close(fetcher.gate)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, int32(1), fetcher.calls.Load())
	assert.Len(t, saver.files, 2, "each caller still gets its file saved")
}

func TestExporter_CanceledCallerDoesNotFailOthers(t *testing.T) {
	fetcher := &fakeFetcher{
		docs:    map[string]*model.Document{"R-1": docFor("R-1", []byte("abc"))},
		gate:    make(chan struct{}),
		entered: make(chan struct{}, 2),
	}
	saver := &memSaver{}
	e := New(fetcher, saver, WithLogger(discardLogger()), WithVerify(VerifyOff))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := make(chan error, 1)
	go func() {
		_, err := e.Download(ctx, "R-1")
		first <- err
	}()
	<-fetcher.entered

	second := make(chan error, 1)
	go func() {
		_, err := e.Download(context.Background(), "R-1")
		second <- err
	}()
	// Give the second call time to join the in-flight fetch.
	time.Sleep(50 * time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-first, context.Canceled)

	close(fetcher.gate)
	require.NoError(t, <-second)
	assert.Equal(t, int32(1), fetcher.calls.Load())
	require.Len(t, saver.files, 1)
	assert.Equal(t, []byte("abc"), saver.files[0].Data)
}

func TestExporter_DownloadAll(t *testing.T) {
	fetcher := &fakeFetcher{docs: map[string]*model.Document{
		"R-1": docFor("R-1", []byte("one")),
		"R-2": {Meta: model.DocumentMeta{ReportID: "R-2"}},
		"R-3": docFor("R-3", []byte("three")),
	}}
	saver := &memSaver{}
	e := New(fetcher, saver, WithLogger(discardLogger()), WithVerify(VerifyOff))

	outcomes := e.DownloadAll(context.Background(), []string{"R-1", "R-2", "R-3", "R-4"}, 2)
	require.Len(t, outcomes, 4)

	assert.Equal(t, "R-1", outcomes[0].ReportID)
	assert.NoError(t, outcomes[0].Err)
	assert.ErrorIs(t, outcomes[1].Err, ErrNoDocument)
	assert.NotEmpty(t, outcomes[1].Error)
	assert.NoError(t, outcomes[2].Err)
	assert.Error(t, outcomes[3].Err)

	assert.Equal(t, 2, Failed(outcomes))
	assert.Len(t, saver.files, 2)
}

func TestExporter_DownloadAll_Canceled(t *testing.T) {
	fetcher := &fakeFetcher{docs: map[string]*model.Document{"R-1": docFor("R-1", []byte("one"))}}
	e := New(fetcher, &memSaver{}, WithLogger(discardLogger()), WithVerify(VerifyOff))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	outcomes := e.DownloadAll(ctx, []string{"R-1", "R-1"}, 0)
	assert.Equal(t, 2, Failed(outcomes))
	assert.Zero(t, fetcher.calls.Load())
}

func TestDirSaver(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")
	s := DirSaver{Dir: dir}

	path, err := s.Save(context.Background(), File{Name: "R-100.pdf", MIMEType: MIMEType, Data: []byte("pdf")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "R-100.pdf"), path)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("pdf"), got)

	// Overwrites an earlier download of the same report.
	_, err = s.Save(context.Background(), File{Name: "R-100.pdf", Data: []byte("newer")})
	require.NoError(t, err)
	got, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("newer"), got)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestDirSaver_StaysInDirectory(t *testing.T) {
	dir := t.TempDir()
	s := DirSaver{Dir: dir}

	path, err := s.Save(context.Background(), File{Name: "../../escape.pdf", Data: []byte("x")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "escape.pdf"), path)
}

func TestResponseSaver(t *testing.T) {
	rec := httptest.NewRecorder()
	s := ResponseSaver{W: rec}

	loc, err := s.Save(context.Background(), File{Name: "R-100.pdf", MIMEType: MIMEType, Data: []byte("pdf-bytes")})
	require.NoError(t, err)
	assert.Empty(t, loc)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, MIMEType, rec.Header().Get("Content-Type"))
	assert.Equal(t, "9", rec.Header().Get("Content-Length"))
	assert.Equal(t, `attachment; filename="R-100.pdf"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "pdf-bytes", rec.Body.String())
}

func TestParseVerifyMode(t *testing.T) {
	for _, s := range []string{"off", "warn", "strict"} {
		m, err := ParseVerifyMode(s)
		require.NoError(t, err)
		assert.Equal(t, VerifyMode(s), m)
	}

	_, err := ParseVerifyMode("maybe")
	assert.Error(t, err)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "R-1.pdf", FileName(&model.Document{Meta: model.DocumentMeta{ReportID: "R-1"}}, "ignored"))
	assert.Equal(t, "asked.pdf", FileName(&model.Document{}, "asked"))
	assert.Equal(t, "asked.pdf", FileName(nil, "asked"))
}
