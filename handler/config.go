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

// Package handler implements the generic file/dir/pass/action handlers
// of §4.11 plus the multipart upload filter of §4.12 — the terminal
// stages a route's Target/Handler name resolves to, once auth, session
// and routing have already run.
package handler

// Config is the per-route settings the file/dir handlers and the
// upload filter consult. httpcore builds one per route from its
// config, mirroring route.Route's own per-route field shape.
type Config struct {
	// DocumentRoot is joined with rx.PathInfo to resolve a file path,
	// per §4.11 ("resolve the filename from rx.target joined with
	// route documents").
	DocumentRoot string

	// Index lists filenames tried, in order, for a directory request
	// ending in "/".
	Index []string

	// LanguageDirs maps a negotiated language tag to a subdirectory of
	// DocumentRoot, tried only when the path does not exist directly
	// under DocumentRoot (e.g. "fr" -> "fr").
	LanguageDirs map[string]string

	// LanguageSuffixes maps a negotiated language tag to a filename
	// suffix tried before the extension (e.g. "index.fr.html").
	LanguageSuffixes map[string]string

	// ExtensionTypes maps a file extension (with leading dot) to the
	// Content-Type served for it; unmapped extensions fall back to
	// mime.TypeByExtension.
	ExtensionTypes map[string]string

	// CompressOnTheFly enables on-the-fly gzip (via klauspost/compress)
	// when no on-disk ".gz" sibling exists and the client advertises
	// gzip support.
	CompressOnTheFly bool

	// UploadDir is where the upload filter creates temp files for
	// multipart parts that carry a filename.
	UploadDir string

	// AutoDeleteUploads is carried in the configuration only: nothing in
	// this module reads it, and temp upload files are removed only when
	// Upload.Cleanup is called.
	AutoDeleteUploads bool

	// MaxUploadSize bounds a single uploaded part's size; 0 means
	// unbounded (the server-wide body limit still applies upstream).
	MaxUploadSize int64
}
