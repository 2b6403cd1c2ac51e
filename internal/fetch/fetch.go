// Package fetch drains paginated queries into memory. Pages are requested
// strictly one after another; a failed page aborts the whole scan so callers
// never mistake a partial result for a complete one.
package fetch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// DefaultPageSize is the page size used when Options.PageSize is unset.
const DefaultPageSize = 1000

// ErrPage wraps every page failure returned by Offset and Cursor.
var ErrPage = errors.New("page fetch failed")

// Options controls a scan.
type Options struct {
	// Name identifies the scan in logs and errors.
	Name string
	// PageSize is the number of rows requested per page.
	PageSize int
	// Ceiling caps the number of rows kept; zero means unbounded.
	Ceiling int
	Logger  *zap.Logger
}

func (o Options) normalized() Options {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.Ceiling < 0 {
		o.Ceiling = 0
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Name == "" {
		o.Name = "scan"
	}
	return o
}

// Result is the outcome of a completed scan.
type Result[T any] struct {
	Items []T
	Pages int
	// Truncated is set when the scan stopped at the ceiling while more rows
	// may have been available.
	Truncated bool
}

// PageFunc returns up to limit rows starting at offset.
type PageFunc[T any] func(ctx context.Context, offset, limit int) ([]T, error)

// CursorPageFunc returns up to limit rows ordered after the cursor. The zero
// cursor requests the first page.
type CursorPageFunc[T any, C any] func(ctx context.Context, after C, limit int) ([]T, error)

// Offset scans with limit/offset paging.
func Offset[T any](ctx context.Context, fn PageFunc[T], opts Options) (Result[T], error) {
	opts = opts.normalized()
	var result Result[T]
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return Result[T]{}, fmt.Errorf("%w: %s at offset %d: %w", ErrPage, opts.Name, offset, err)
		}
		page, err := fn(ctx, offset, opts.PageSize)
		if err != nil {
			return Result[T]{}, fmt.Errorf("%w: %s at offset %d: %w", ErrPage, opts.Name, offset, err)
		}
		result.Pages++
		opts.Logger.Debug("fetched page",
			zap.String("scan", opts.Name),
			zap.Int("offset", offset),
			zap.Int("rows", len(page)),
		)

		result.Items = append(result.Items, page...)
		if done := clip(&result, len(page), opts); done {
			break
		}
		offset += len(page)
	}
	return result, nil
}

// Cursor scans with keyset paging: each page starts after the cursor of the
// last row of the previous page.
func Cursor[T any, C any](ctx context.Context, fn CursorPageFunc[T, C], cursorOf func(T) C, opts Options) (Result[T], error) {
	opts = opts.normalized()
	var result Result[T]
	var after C
	for {
		if err := ctx.Err(); err != nil {
			return Result[T]{}, fmt.Errorf("%w: %s after %v: %w", ErrPage, opts.Name, after, err)
		}
		page, err := fn(ctx, after, opts.PageSize)
		if err != nil {
			return Result[T]{}, fmt.Errorf("%w: %s after %v: %w", ErrPage, opts.Name, after, err)
		}
		result.Pages++
		opts.Logger.Debug("fetched page",
			zap.String("scan", opts.Name),
			zap.Any("after", after),
			zap.Int("rows", len(page)),
		)

		result.Items = append(result.Items, page...)
		if done := clip(&result, len(page), opts); done {
			break
		}
		after = cursorOf(page[len(page)-1])
	}
	return result, nil
}

// clip applies the ceiling and reports whether the scan is finished.
func clip[T any](result *Result[T], pageLen int, opts Options) bool {
	if opts.Ceiling > 0 && len(result.Items) >= opts.Ceiling {
		if len(result.Items) > opts.Ceiling || pageLen == opts.PageSize {
			result.Truncated = true
			opts.Logger.Warn("scan reached row ceiling",
				zap.String("scan", opts.Name),
				zap.Int("ceiling", opts.Ceiling),
			)
		}
		result.Items = result.Items[:opts.Ceiling]
		return true
	}
	return pageLen < opts.PageSize
}
