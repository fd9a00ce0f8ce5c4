package results

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pavelanni/gcsemock/internal/model"
)

type recorder struct {
	calls []string

	saveErr   error
	renderErr error
	uploadErr error
	linkErr   error

	linked map[string]string
}

func (r *recorder) SaveExamResult(_ context.Context, res model.ExamResult) (string, error) {
	r.calls = append(r.calls, "save")
	if r.saveErr != nil {
		return "", r.saveErr
	}
	return "res-1", nil
}

func (r *recorder) SetExamResultPDF(_ context.Context, id, url string) error {
	r.calls = append(r.calls, "link:"+id)
	if r.linkErr != nil {
		return r.linkErr
	}
	if r.linked == nil {
		r.linked = make(map[string]string)
	}
	r.linked[id] = url
	return nil
}

func (r *recorder) Render(_ model.ExamPaper, res model.ExamResult) ([]byte, error) {
	r.calls = append(r.calls, "render:"+res.ID)
	if r.renderErr != nil {
		return nil, r.renderErr
	}
	return []byte("%PDF-1.3"), nil
}

func (r *recorder) Upload(_ context.Context, name string, _ []byte) (string, error) {
	r.calls = append(r.calls, "upload:"+name)
	if r.uploadErr != nil {
		return "", r.uploadErr
	}
	return "https://files.example/" + name, nil
}

func sampleResult() model.ExamResult {
	return model.ExamResult{UserID: 4, PaperID: "p1", TotalScore: 12, MaxScore: 80}
}

func TestPersistFullChain(t *testing.T) {
	rec := &recorder{}
	p := NewPersister(rec, rec, rec, nil)

	out := p.Persist(context.Background(), model.ExamPaper{ID: "p1"}, sampleResult())

	require.Empty(t, out.Failures)
	require.Equal(t, "res-1", out.ResultID)
	require.Equal(t, "https://files.example/results/4/res-1.pdf", out.PDFURL)
	require.Equal(t, []string{"save", "render:res-1", "upload:results/4/res-1.pdf", "link:res-1"}, rec.calls)
	require.Equal(t, out.PDFURL, rec.linked["res-1"])
}

func TestPersistSaveFailureSkipsPDF(t *testing.T) {
	rec := &recorder{saveErr: errors.New("db locked")}
	p := NewPersister(rec, rec, rec, nil)

	out := p.Persist(context.Background(), model.ExamPaper{}, sampleResult())

	require.Empty(t, out.ResultID)
	require.Equal(t, []string{"save"}, rec.calls)
	require.True(t, out.Failed(StepSave))
	require.ErrorIs(t, out.Failures[0], rec.saveErr)
}

func TestPersistPDFFailuresKeepSavedResult(t *testing.T) {
	tests := []struct {
		name      string
		rec       *recorder
		failed    Step
		wantCalls int
	}{
		{"render", &recorder{renderErr: errors.New("font missing")}, StepRender, 2},
		{"upload", &recorder{uploadErr: errors.New("bucket gone")}, StepUpload, 3},
		{"link", &recorder{linkErr: errors.New("row gone")}, StepLink, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewPersister(tt.rec, tt.rec, tt.rec, nil)
			out := p.Persist(context.Background(), model.ExamPaper{}, sampleResult())

			require.Equal(t, "res-1", out.ResultID)
			require.Empty(t, out.PDFURL)
			require.Len(t, out.Failures, 1)
			require.True(t, out.Failed(tt.failed))
			require.Len(t, tt.rec.calls, tt.wantCalls)
		})
	}
}

func TestAttachPDFRetry(t *testing.T) {
	rec := &recorder{uploadErr: errors.New("timeout")}
	p := NewPersister(rec, rec, rec, nil)
	first := p.Persist(context.Background(), model.ExamPaper{}, sampleResult())
	require.True(t, first.Failed(StepUpload))

	rec.uploadErr = nil
	r := sampleResult()
	r.ID = first.ResultID
	second := p.AttachPDF(context.Background(), model.ExamPaper{}, r)
	require.Empty(t, second.Failures)
	require.NotEmpty(t, second.PDFURL)
}

func TestPersistWithoutPDFBackends(t *testing.T) {
	rec := &recorder{}
	p := NewPersister(rec, nil, nil, nil)
	out := p.Persist(context.Background(), model.ExamPaper{}, sampleResult())
	require.Equal(t, "res-1", out.ResultID)
	require.Equal(t, []string{"save"}, rec.calls)
}
