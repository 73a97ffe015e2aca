package api

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/sketchlab-dev/previewd/internal/bundler"
	"github.com/sketchlab-dev/previewd/internal/observability"
	"github.com/sketchlab-dev/previewd/internal/preview"
	"github.com/sketchlab-dev/previewd/internal/project"
)

// PreviewHandler serves rendered preview documents. Every response is a
// complete HTML page: authoring failures render as failure pages with
// status 200 so the embedding frame always has something to show.
type PreviewHandler struct {
	store     project.Reader
	builder   *bundler.Builder
	assembler *preview.Assembler
	metrics   *observability.Metrics
	tracer    *observability.Tracer
	timeout   time.Duration
}

// NewPreviewHandler creates a preview handler
func NewPreviewHandler(store project.Reader, builder *bundler.Builder, assembler *preview.Assembler, metrics *observability.Metrics, tracer *observability.Tracer, timeout time.Duration) *PreviewHandler {
	return &PreviewHandler{
		store:     store,
		builder:   builder,
		assembler: assembler,
		metrics:   metrics,
		tracer:    tracer,
		timeout:   timeout,
	}
}

// HandlePreview renders the preview document for one project.
// GET /preview/:projectId
func (h *PreviewHandler) HandlePreview(c *fiber.Ctx) error {
	projectParam := c.Params("projectId")
	projectID, err := uuid.Parse(projectParam)
	if err != nil {
		return htmlResponse(c, fiber.StatusNotFound, preview.RenderProjectNotFound(projectParam))
	}

	ctx, span := h.tracer.StartSpan(c.Context(), "preview.render")
	defer span.End()
	observability.SetSpanAttributes(ctx, attribute.String("project.id", projectID.String()))

	loadCtx, loadSpan := h.tracer.StartSpan(ctx, "preview.load")
	proj, err := h.store.GetProject(loadCtx, projectID)
	if err != nil {
		loadSpan.End()
		if errors.Is(err, project.ErrProjectNotFound) {
			return htmlResponse(c, fiber.StatusNotFound, preview.RenderProjectNotFound(projectID.String()))
		}
		observability.RecordError(ctx, err)
		log.Error().Err(err).Str("project_id", projectID.String()).Msg("Project lookup failed")
		h.metrics.RecordBuild(observability.BuildOutcomeStoreUnavailable, 0)
		return htmlResponse(c, fiber.StatusServiceUnavailable, preview.RenderStoreUnavailable())
	}

	files, err := h.store.ListFiles(loadCtx, projectID)
	loadSpan.End()
	if err != nil {
		observability.RecordError(ctx, err)
		log.Error().Err(err).Str("project_id", projectID.String()).Msg("File listing failed")
		h.metrics.RecordBuild(observability.BuildOutcomeStoreUnavailable, 0)
		return htmlResponse(c, fiber.StatusServiceUnavailable, preview.RenderStoreUnavailable())
	}
	observability.SetSpanAttributes(ctx, attribute.Int("project.files", len(files)))

	if len(files) == 0 {
		return htmlResponse(c, fiber.StatusOK, preview.RenderEmptyProject())
	}

	contents := make(map[string]string, len(files))
	for _, f := range files {
		contents[f.Path] = f.Content
	}
	snap := bundler.NewSnapshot(contents)

	buildCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()
	buildCtx, buildSpan := h.tracer.StartSpan(buildCtx, "preview.build")

	start := time.Now()
	artifact, err := h.builder.Build(buildCtx, snap)
	elapsed := time.Since(start)
	buildSpan.End()
	if err != nil {
		observability.RecordError(ctx, err)
		return h.renderBuildFailure(c, proj, err, elapsed)
	}

	h.metrics.RecordBuild(observability.BuildOutcomeSuccess, elapsed)
	h.metrics.RecordBundleSize(len(artifact.Code))
	observability.SetSpanAttributes(ctx, attribute.Int("bundle.bytes", len(artifact.Code)))

	assembleCtx, assembleSpan := h.tracer.StartSpan(ctx, "preview.assemble")
	doc, err := h.assembler.Assemble(artifact.Code)
	assembleSpan.End()
	if err != nil {
		observability.RecordError(assembleCtx, err)
		log.Error().Err(err).Str("project_id", projectID.String()).Msg("Document assembly failed")
		return htmlResponse(c, fiber.StatusServiceUnavailable, preview.RenderStoreUnavailable())
	}

	log.Info().
		Str("project_id", projectID.String()).
		Str("project_name", proj.Name).
		Int("files", len(files)).
		Dur("build_time", elapsed).
		Msg("Preview rendered")

	return htmlResponse(c, fiber.StatusOK, doc)
}

// renderBuildFailure maps build errors onto their failure documents. Only a
// timeout is an infrastructure failure; everything else is an authoring
// state the preview reports back as content.
func (h *PreviewHandler) renderBuildFailure(c *fiber.Ctx, proj *project.Project, err error, elapsed time.Duration) error {
	var buildErr *bundler.BuildError

	switch {
	case errors.Is(err, bundler.ErrNoEntry):
		h.metrics.RecordBuild(observability.BuildOutcomeNoEntry, elapsed)
		return htmlResponse(c, fiber.StatusOK, preview.RenderNoEntry())

	case errors.As(err, &buildErr):
		h.metrics.RecordBuild(observability.BuildOutcomeCompileError, elapsed)
		return htmlResponse(c, fiber.StatusOK, preview.RenderCompileFailure(buildErr))

	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		log.Warn().
			Str("project_id", proj.ID.String()).
			Dur("elapsed", elapsed).
			Msg("Preview build timed out")
		h.metrics.RecordBuild(observability.BuildOutcomeTimeout, elapsed)
		return htmlResponse(c, fiber.StatusServiceUnavailable, preview.RenderStoreUnavailable())

	default:
		log.Error().Err(err).Str("project_id", proj.ID.String()).Msg("Preview build failed")
		h.metrics.RecordBuild(observability.BuildOutcomeCompileError, elapsed)
		return htmlResponse(c, fiber.StatusOK, preview.RenderCompileFailure(&bundler.BuildError{
			Diagnostics: []bundler.Diagnostic{{Message: err.Error()}},
		}))
	}
}

func htmlResponse(c *fiber.Ctx, status int, body string) error {
	c.Set(fiber.HeaderContentType, fiber.MIMETextHTMLCharsetUTF8)
	return c.Status(status).SendString(body)
}
