package images

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bookforge/internal/language"
	"bookforge/internal/logging"
	"bookforge/internal/markdown"
	"bookforge/internal/metrics"
	"bookforge/internal/services"
	"bookforge/internal/store"
	"bookforge/internal/textutil"
)

// ErrExhausted means every source allowed by the policy failed and no
// placeholder was available. It is an empty-result error; the source
// failures stay reachable through errors.Is.
var ErrExhausted = fmt.Errorf("%w: all image sources exhausted", services.ErrEmptyResult)

const maxKeywordRunes = 100

// Request describes the chapter needing an illustration.
type Request struct {
	BookID       string
	BookTitle    string
	Language     string
	Policy       store.ImagePolicy
	Chapter      int
	ChapterTitle string
	Suggestion   string
	Content      string
}

// Result is a resolved image.
type Result struct {
	Data        []byte
	ContentType string
	Source      store.ImageSource
	Provider    string
}

// Resolver chains image sources according to a policy. Nil sources are skipped.
type Resolver struct {
	ai          services.ImageGenerator
	stock       services.StockProvider
	placeholder services.PlaceholderProvider
	timeout     time.Duration
	logger      *slog.Logger
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithTimeout bounds each individual provider attempt.
func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = d
	}
}

// WithLogger sets the resolver logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewResolver builds a resolver. Any of the providers may be nil.
func NewResolver(ai services.ImageGenerator, stock services.StockProvider, placeholder services.PlaceholderProvider, opts ...Option) *Resolver {
	r := &Resolver{
		ai:          ai,
		stock:       stock,
		placeholder: placeholder,
		logger:      logging.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(logging.String(logging.FieldComponent, "images"))
	return r
}

// Resolve obtains image bytes for the request. Policy ai tries the generator
// and fails with it; stock tries the stock library by chapter title then book
// title; both tries ai then stock. The placeholder only backs a stock miss.
func (r *Resolver) Resolve(ctx context.Context, req Request) (*Result, error) {
	policy := req.Policy
	if !policy.Valid() {
		policy = store.ImagePolicyAI
	}
	logger := logging.WithContext(ctx, r.logger)

	var failures []error
	if policy == store.ImagePolicyAI || policy == store.ImagePolicyBoth {
		res, err := r.fromAI(ctx, req)
		if err == nil {
			return res, nil
		}
		if policy == store.ImagePolicyAI {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("%w: %w", ErrExhausted, err)
		}
		failures = append(failures, err)
		logger.Warn("ai image generation failed; falling back to stock",
			logging.Chapter(req.Chapter),
			logging.String(logging.FieldEventType, "image_source_failed"),
			logging.String(logging.FieldErrorHint, "check image provider credentials and quota"),
			logging.Error(err),
		)
	}
	if policy == store.ImagePolicyStock || policy == store.ImagePolicyBoth {
		res, err := r.fromStock(ctx, req)
		if err == nil {
			return res, nil
		}
		failures = append(failures, err)
		logger.Info("stock image lookup missed",
			logging.Chapter(req.Chapter),
			logging.String(logging.FieldEventType, "image_source_failed"),
			logging.Error(err),
		)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if r.placeholder != nil {
		seed := req.BookID + ":" + strconv.Itoa(req.Chapter)
		data := r.placeholder.Placeholder(seed)
		if contentType, ok := imageContentType(data); ok {
			return &Result{
				Data:        data,
				ContentType: contentType,
				Source:      store.ImageSourcePlaceholder,
				Provider:    services.ProviderName(r.placeholder, "placeholder"),
			}, nil
		}
	}
	if len(failures) == 0 {
		return nil, ErrExhausted
	}
	return nil, fmt.Errorf("%w: %w", ErrExhausted, errors.Join(failures...))
}

func (r *Resolver) fromAI(ctx context.Context, req Request) (*Result, error) {
	if r.ai == nil {
		return nil, services.Wrap(services.ErrConfiguration, "images", "ai", "no image generator configured", nil)
	}
	name := services.ProviderName(r.ai, "ai")
	prompt := Prompt(req)
	data, err := r.attempt(ctx, "image", name, func(ctx context.Context) ([]byte, error) {
		return r.ai.GenerateImage(ctx, prompt)
	})
	if err != nil {
		return nil, err
	}
	contentType, ok := imageContentType(data)
	if !ok {
		return nil, services.Wrap(services.ErrEmptyResult, "images", "ai", "provider returned non-image payload", nil)
	}
	return &Result{Data: data, ContentType: contentType, Source: store.ImageSourceAI, Provider: name}, nil
}

func (r *Resolver) fromStock(ctx context.Context, req Request) (*Result, error) {
	if r.stock == nil {
		return nil, services.Wrap(services.ErrConfiguration, "images", "stock", "no stock provider configured", nil)
	}
	name := services.ProviderName(r.stock, "stock")
	var lastErr error
	for _, keyword := range Keywords(req) {
		data, err := r.attempt(ctx, "stock", name, func(ctx context.Context) ([]byte, error) {
			return r.stock.Lookup(ctx, keyword)
		})
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		contentType, ok := imageContentType(data)
		if !ok {
			lastErr = services.Wrap(services.ErrEmptyResult, "images", "stock", "provider returned non-image payload", nil)
			continue
		}
		return &Result{Data: data, ContentType: contentType, Source: store.ImageSourceStock, Provider: name}, nil
	}
	if lastErr == nil {
		lastErr = services.Wrap(services.ErrNotFound, "images", "stock", "no keyword to search", nil)
	}
	return nil, lastErr
}

func (r *Resolver) attempt(ctx context.Context, kind, provider string, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	callCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}
	started := time.Now()
	data, err := fn(callCtx)
	if err == nil && len(data) == 0 {
		err = services.Wrap(services.ErrEmptyResult, "images", kind, "provider returned no bytes", nil)
	}
	if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		err = services.Wrap(services.ErrProvider, "images", kind, "attempt timed out", err)
	}
	metrics.ObserveProvider(kind, provider, started, err)
	return data, err
}

func imageContentType(data []byte) (string, bool) {
	if len(data) == 0 {
		return "", false
	}
	contentType := http.DetectContentType(data)
	return contentType, strings.HasPrefix(contentType, "image/")
}

// Prompt builds the illustration prompt for the AI generator.
func Prompt(req Request) string {
	suggestion := strings.TrimSpace(req.Suggestion)
	if suggestion == "" {
		suggestion = markdown.Plain(req.ChapterTitle)
		if excerpt := textutil.Truncate(strings.Join(strings.Fields(markdown.PlainText(req.Content)), " "), 200); excerpt != "" {
			suggestion += ", " + excerpt
		}
	}
	return fmt.Sprintf(
		"Create a professional, high-quality illustration for a book chapter titled '%s'. The image should be: %s. Style: clean, professional, suitable for print publication. No text in the image.",
		markdown.Plain(req.ChapterTitle), suggestion,
	)
}

// Keywords lists stock search terms in order: chapter title, then book title.
func Keywords(req Request) []string {
	var out []string
	seen := map[string]struct{}{}
	for _, candidate := range []string{req.ChapterTitle, req.BookTitle} {
		keyword := textutil.Truncate(language.Lower(req.Language, markdown.Plain(candidate)), maxKeywordRunes)
		keyword = strings.TrimSuffix(keyword, "…")
		if keyword == "" {
			continue
		}
		if _, dup := seen[keyword]; dup {
			continue
		}
		seen[keyword] = struct{}{}
		out = append(out, keyword)
	}
	return out
}
