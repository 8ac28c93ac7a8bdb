/*
 * MIT License
 *
 * Copyright (c) 2024 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 */

package handler

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	"github.com/sabouaram/httpcore/byterange"
	liberr "github.com/sabouaram/httpcore/errors"
	"github.com/sabouaram/httpcore/rx"
	"github.com/sabouaram/httpcore/tx"
)

// FileHandler implements §4.11: filename resolution (document root +
// language directory/suffix + extension mapping, preferring an on-disk
// ".gz" sibling), etag/Last-Modified, and the per-method behavior
// (GET/HEAD/POST serve, PUT upload, DELETE unlink, OPTIONS Allow,
// directory index/redirect).
type FileHandler struct {
	Config *Config
	Dir    *DirHandler // nil means a directory with no index 403s instead of listing
}

// NewFileHandler builds a FileHandler against cfg; dir may be nil.
func NewFileHandler(cfg *Config, dir *DirHandler) *FileHandler {
	return &FileHandler{Config: cfg, Dir: dir}
}

// Serve resolves rxReq.PathInfo against the configured document root
// and dispatches on rxReq.Method.
func (h *FileHandler) Serve(rxReq *rx.Rx, txResp *tx.Tx) error {
	switch rxReq.Method {
	case http.MethodGet, http.MethodHead, http.MethodPost:
		return h.serveRead(rxReq, txResp)
	case http.MethodPut:
		return h.servePut(rxReq, txResp)
	case http.MethodDelete:
		return h.serveDelete(rxReq, txResp)
	case http.MethodOptions:
		return methodNotAllowed2Allow(txResp)
	default:
		return methodNotAllowed(txResp, "GET, HEAD, POST, PUT, DELETE, OPTIONS")
	}
}

func methodNotAllowed2Allow(txResp *tx.Tx) error {
	txResp.SetStatus(http.StatusOK, "")
	txResp.SetHeader("Allow", "GET, HEAD, POST, PUT, DELETE, OPTIONS")
	txResp.SetContentLength(0)
	return txResp.FinishOutput()
}

func (h *FileHandler) serveRead(rxReq *rx.Rx, txResp *tx.Tx) error {
	resolved, isDir, err := h.resolve(rxReq)
	if err != nil {
		return notFound(txResp, err)
	}

	if isDir {
		return h.serveDirectory(rxReq, txResp, resolved)
	}

	return h.serveFile(rxReq, txResp, resolved)
}

// serveDirectory implements the "directory with trailing slash" half
// of §4.11: a non-"/"-suffixed directory request 301s to the
// trailing-slash form; a "/"-suffixed one tries each index file, else
// delegates to the directory listing handler.
func (h *FileHandler) serveDirectory(rxReq *rx.Rx, txResp *tx.Tx, dirPath string) error {
	if !strings.HasSuffix(rxReq.PathInfo, "/") {
		txResp.SetStatus(http.StatusMovedPermanently, "")
		txResp.SetHeader("Location", rxReq.PathInfo+"/")
		txResp.SetContentLength(0)
		return txResp.FinishOutput()
	}

	for _, idx := range h.Config.Index {
		candidate := filepath.Join(dirPath, idx)
		if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
			return h.serveFile(rxReq, txResp, candidate)
		}
	}

	if h.Dir != nil {
		return h.Dir.Serve(rxReq, txResp, dirPath)
	}

	txResp.SetStatus(http.StatusForbidden, "")
	txResp.SetContentLength(0)
	return liberr.CodeAuthForbidden.Error(nil)
}

// serveFile opens path, sets etag/Last-Modified/Content-Type, and
// streams the body via the send connector's zero-copy path, honoring
// any resolved byte ranges (§4.8).
func (h *FileHandler) serveFile(rxReq *rx.Rx, txResp *tx.Tx, path string) error {
	acceptEncoding := rxReq.Header.Get("Accept-Encoding")

	servedPath := path
	gzipped := false
	if sibling, ok := gzipSibling(path, acceptEncoding); ok {
		servedPath = sibling
		gzipped = true
	}

	f, err := os.Open(servedPath)
	if err != nil {
		return notFound(txResp, err)
	}
	defer func() {
		if rxReq.Method == http.MethodHead {
			f.Close()
		}
	}()

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return internalError(txResp, err)
	}

	etag := tx.BuildETag(info)
	txResp.ETag = etag
	txResp.SetHeader("ETag", `"`+etag+`"`)
	txResp.SetLastModified(info.ModTime())
	txResp.Filename = servedPath
	txResp.FileInfo = info
	txResp.SetHeader("Content-Type", h.contentType(path))
	if gzipped {
		txResp.SetHeader("Content-Encoding", "gzip")
	}

	if notModified(rxReq, etag, info) {
		txResp.NotModified()
		f.Close()
		return txResp.FinishOutput()
	}

	length := info.Size()

	// On-the-fly compression forfeits both the range filter and the
	// sendfile fast path: the entity the client sees no longer matches
	// the on-disk byte layout, so it is only attempted when there is no
	// ".gz" sibling to prefer and no range was requested.
	if !gzipped && h.Config.CompressOnTheFly && strings.Contains(strings.ToLower(acceptEncoding), "gzip") && rxReq.Header.Get("Range") == "" {
		compressed, cerr := gzipCompress(f)
		f.Close()
		if cerr != nil {
			return internalError(txResp, cerr)
		}

		txResp.SetHeader("Content-Encoding", "gzip")
		txResp.SetContentLength(int64(len(compressed)))

		if rxReq.Method == http.MethodHead {
			return txResp.FinishOutput()
		}
		if _, werr := txResp.WriteBody(compressed); werr != nil {
			return werr
		}
		return txResp.FinishOutput()
	}

	if err := rxReq.ResolveRanges(length); err != nil {
		f.Close()
		return err
	}

	if rxReq.Method == http.MethodHead {
		txResp.SetContentLength(length)
		return txResp.FinishOutput()
	}

	if len(rxReq.Ranges) > 0 {
		return h.serveRanges(txResp, f, length, rxReq.Ranges)
	}

	txResp.SetContentLength(length)
	txResp.Connector = "send"
	if err := txResp.WriteFileRange(f, 0, length); err != nil {
		f.Close()
		return err
	}

	return txResp.FinishOutput()
}

func (h *FileHandler) serveRanges(txResp *tx.Tx, f *os.File, length int64, ranges []byterange.Range) error {
	txResp.SetOutputRanges(ranges)
	txResp.SetStatus(http.StatusPartialContent, "")

	contentType := txResp.Header.Get("Content-Type")

	for _, r := range ranges {
		buf := make([]byte, r.Len())
		if _, err := f.ReadAt(buf, r.Start); err != nil {
			f.Close()
			return internalError(txResp, err)
		}
		if _, err := txResp.WriteRangePart(contentType, r, length, buf); err != nil {
			f.Close()
			return err
		}
	}

	if _, err := txResp.WriteRangeTrailer(); err != nil {
		f.Close()
		return err
	}

	f.Close()
	return txResp.FinishOutput()
}

// servePut buffers the request body to path (create or truncate,
// respecting an inbound Content-Range), per §4.11's PUT behavior. The
// body itself has already been accumulated by the caller (conn drives
// rx.FeedBody before BodyComplete); httpcore passes the buffered bytes
// in via body.
func (h *FileHandler) servePut(rxReq *rx.Rx, txResp *tx.Tx) error {
	path, _, err := h.resolve(rxReq)
	if err != nil {
		// PUT may target a path that doesn't exist yet; re-resolve
		// without requiring Stat to succeed.
		path = h.candidatePath(rxReq.PathInfo)
	}

	flags := os.O_WRONLY | os.O_CREATE
	var offset int64

	if rxReq.ContentRange != nil {
		flags |= os.O_CREATE
		offset = rxReq.ContentRange.Start
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return internalError(txResp, err)
	}
	defer f.Close()

	if _, err := f.WriteAt(rxReq.Body, offset); err != nil {
		return internalError(txResp, err)
	}

	txResp.SetStatus(http.StatusNoContent, "")
	txResp.SetContentLength(0)
	return txResp.FinishOutput()
}

func (h *FileHandler) serveDelete(rxReq *rx.Rx, txResp *tx.Tx) error {
	path, isDir, err := h.resolve(rxReq)
	if err != nil {
		return notFound(txResp, err)
	}
	if isDir {
		txResp.SetStatus(http.StatusForbidden, "")
		txResp.SetContentLength(0)
		return liberr.CodeAuthForbidden.Error(nil)
	}

	if err := os.Remove(path); err != nil {
		return internalError(txResp, err)
	}

	txResp.SetStatus(http.StatusNoContent, "")
	txResp.SetContentLength(0)
	return txResp.FinishOutput()
}

// candidatePath joins the document root and pathInfo without checking
// existence, for PUT targets that don't exist yet.
func (h *FileHandler) candidatePath(pathInfo string) string {
	return filepath.Join(h.Config.DocumentRoot, filepath.FromSlash(pathInfo))
}

// resolve implements the filename-resolution half of §4.11: the path
// under the document root, or, only when that does not exist, its
// language directory/suffix variants for each accepted language. The
// ".gz" sibling and the extension-to-type mapping are not chosen here.
func (h *FileHandler) resolve(rxReq *rx.Rx) (resolved string, isDir bool, err error) {
	base := h.candidatePath(rxReq.PathInfo)

	info, statErr := os.Stat(base)
	if statErr == nil {
		return base, info.IsDir(), nil
	}

	for _, lang := range acceptedLanguages(rxReq.Header.Get("Accept-Language")) {
		if dir, ok := h.Config.LanguageDirs[lang]; ok {
			candidate := filepath.Join(h.Config.DocumentRoot, dir, filepath.FromSlash(rxReq.PathInfo))
			if info, err := os.Stat(candidate); err == nil {
				return candidate, info.IsDir(), nil
			}
		}

		if suffix, ok := h.Config.LanguageSuffixes[lang]; ok {
			candidate := insertSuffix(base, suffix)
			if info, err := os.Stat(candidate); err == nil {
				return candidate, info.IsDir(), nil
			}
		}
	}

	return "", false, statErr
}

// gzipSibling returns base+".gz" when it exists and the client's
// Accept-Encoding includes gzip, per §4.11's "prefer .gz variants".
func gzipSibling(base string, acceptEncoding string) (string, bool) {
	if !strings.Contains(strings.ToLower(acceptEncoding), "gzip") {
		return "", false
	}

	candidate := base + ".gz"
	if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
		return candidate, true
	}

	return "", false
}

// gzipCompress reads f from its current offset and returns its
// klauspost/compress/gzip-encoded bytes, the CompressOnTheFly fallback
// for routes with no ".gz" sibling on disk.
func gzipCompress(f *os.File) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := io.Copy(zw, f); err != nil {
		zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func insertSuffix(base, suffix string) string {
	ext := filepath.Ext(base)
	return strings.TrimSuffix(base, ext) + suffix + ext
}

func acceptedLanguages(header string) []string {
	var out []string
	for _, part := range strings.Split(header, ",") {
		part = strings.TrimSpace(part)
		if semi := strings.IndexByte(part, ';'); semi >= 0 {
			part = part[:semi]
		}
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (h *FileHandler) contentType(path string) string {
	ext := filepath.Ext(path)
	if ct, ok := h.Config.ExtensionTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func notModified(rxReq *rx.Rx, etag string, info os.FileInfo) bool {
	if rxReq.IfNoneMatch != "" {
		return rxReq.IfNoneMatch == `"`+etag+`"` || rxReq.IfNoneMatch == "*"
	}
	if !rxReq.IfModifiedSince.IsZero() {
		return !info.ModTime().After(rxReq.IfModifiedSince)
	}
	return false
}
