// Package results stores marked exam results and their PDF copies. Storage
// is best effort: only the initial save gates the later steps, and no step
// failure reaches the student as a blocking error.
package results

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pavelanni/gcsemock/internal/model"
)

// Step names one stage of the persistence chain.
type Step string

const (
	StepSave   Step = "save"
	StepRender Step = "render_pdf"
	StepUpload Step = "upload_pdf"
	StepLink   Step = "link_pdf"
)

// StepError records the failure of one step.
type StepError struct {
	Step Step
	Err  error
}

func (e StepError) Error() string {
	return fmt.Sprintf("%s: %v", e.Step, e.Err)
}

func (e StepError) Unwrap() error { return e.Err }

// MarshalText lets outcomes be reported in JSON responses.
func (e StepError) MarshalText() ([]byte, error) {
	return []byte(e.Error()), nil
}

// Outcome reports what the chain achieved.
type Outcome struct {
	ResultID string      `json:"result_id,omitempty"`
	PDFURL   string      `json:"pdf_url,omitempty"`
	Failures []StepError `json:"failures,omitempty"`
}

// Failed reports whether the given step failed.
func (o Outcome) Failed(step Step) bool {
	for _, f := range o.Failures {
		if f.Step == step {
			return true
		}
	}
	return false
}

// Repository saves results and links their PDFs.
type Repository interface {
	SaveExamResult(ctx context.Context, r model.ExamResult) (string, error)
	SetExamResultPDF(ctx context.Context, id, url string) error
}

// Renderer produces the PDF form of a result.
type Renderer interface {
	Render(paper model.ExamPaper, r model.ExamResult) ([]byte, error)
}

// Uploader stores a file and returns its public URL.
type Uploader interface {
	Upload(ctx context.Context, name string, data []byte) (string, error)
}

// Persister runs save -> render -> upload -> link.
type Persister struct {
	repo     Repository
	renderer Renderer
	uploader Uploader
	logger   *slog.Logger
	timeout  time.Duration
}

// NewPersister creates a Persister. A nil renderer or uploader disables the PDF steps.
func NewPersister(repo Repository, renderer Renderer, uploader Uploader, logger *slog.Logger) *Persister {
	if logger == nil {
		logger = slog.Default()
	}
	return &Persister{
		repo:     repo,
		renderer: renderer,
		uploader: uploader,
		logger:   logger.With("component", "results"),
		timeout:  time.Minute,
	}
}

// Persist saves the result and then tries to attach a PDF copy.
func (p *Persister) Persist(ctx context.Context, paper model.ExamPaper, r model.ExamResult) Outcome {
	// Persistence continues even if the caller has gone away.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()

	id, err := p.repo.SaveExamResult(ctx, r)
	if err != nil {
		p.logger.Error("failed to save result", "user_id", r.UserID, "paper_id", r.PaperID, "error", err)
		return Outcome{Failures: []StepError{{Step: StepSave, Err: err}}}
	}
	r.ID = id
	p.logger.Info("saved result", "result_id", id, "user_id", r.UserID)

	out := p.AttachPDF(ctx, paper, r)
	out.ResultID = id
	return out
}

// AttachPDF renders, uploads and links the PDF of an already saved result.
// Each call is independent so a failed chain can be retried.
func (p *Persister) AttachPDF(ctx context.Context, paper model.ExamPaper, r model.ExamResult) Outcome {
	out := Outcome{ResultID: r.ID}
	if p.renderer == nil || p.uploader == nil {
		return out
	}

	data, err := p.renderer.Render(paper, r)
	if err != nil {
		return p.fail(out, StepRender, r.ID, err)
	}

	url, err := p.uploader.Upload(ctx, pdfName(r), data)
	if err != nil {
		return p.fail(out, StepUpload, r.ID, err)
	}

	if err := p.repo.SetExamResultPDF(ctx, r.ID, url); err != nil {
		return p.fail(out, StepLink, r.ID, err)
	}
	out.PDFURL = url
	p.logger.Info("attached result pdf", "result_id", r.ID, "url", url)
	return out
}

func (p *Persister) fail(out Outcome, step Step, id string, err error) Outcome {
	p.logger.Warn("result pdf step failed", "step", step, "result_id", id, "error", err)
	out.Failures = append(out.Failures, StepError{Step: step, Err: err})
	return out
}

func pdfName(r model.ExamResult) string {
	return fmt.Sprintf("results/%d/%s.pdf", r.UserID, r.ID)
}
