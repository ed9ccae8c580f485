package gemini

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"google.golang.org/genai"

	"github.com/careerdock/docflow-api/internal/config"
	"github.com/careerdock/docflow-api/internal/domain"
	"github.com/careerdock/docflow-api/internal/task"
)

// parsePrompt instructs the model to transcribe the attached document.
const parsePrompt = `Convert the attached document to clean markdown.
Preserve headings, lists and tables. Transcribe the content faithfully;
do not summarize, do not add commentary, output the markdown only.`

// Parser converts stored document artifacts into normalized markdown via
// the Gemini API. PDF artifacts are structurally validated with pdfcpu
// before being sent, so corrupt files fail fast with a local error.
type Parser struct {
	client  *genai.Client
	model   string
	pdfConf *model.Configuration
	logger  *slog.Logger
}

// NewParser creates a Gemini-backed document parser.
func NewParser(client *genai.Client, cfg config.LLMConfig, logger *slog.Logger) (*Parser, error) {
	if client == nil {
		return nil, fmt.Errorf("%w: client cannot be nil", ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}
	if logger == nil {
		logger = slog.Default()
	}

	pdfConf := model.NewDefaultConfiguration()
	pdfConf.ValidationMode = model.ValidationRelaxed

	return &Parser{
		client:  client,
		model:   cfg.ModelName,
		pdfConf: pdfConf,
		logger:  logger.With(slog.String("component", "parser")),
	}, nil
}

// Ensure Parser implements task.Parser
var _ task.Parser = (*Parser)(nil)

// Parse implements task.Parser.
func (p *Parser) Parse(
	ctx context.Context,
	content []byte,
	filename string,
	fileType domain.FileType,
) (string, error) {
	if len(content) == 0 {
		return "", ErrEmptyInput
	}

	if fileType == domain.FileTypePDF {
		if err := api.Validate(bytes.NewReader(content), p.pdfConf); err != nil {
			return "", fmt.Errorf("pdf structure validation failed for %q: %w", filename, err)
		}
	}

	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(parsePrompt),
			genai.NewPartFromBytes(content, fileType.ContentType()),
		}, genai.RoleUser),
	}

	text, err := generateText(ctx, p.client, p.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("failed to parse %q: %w", filename, err)
	}

	p.logger.Debug("document parsed",
		slog.String("filename", filename),
		slog.String("file_type", string(fileType)),
		slog.Int("markdown_length", len(text)))

	return text, nil
}
