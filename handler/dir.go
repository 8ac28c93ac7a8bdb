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
	"fmt"
	"html"
	"net/http"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/sabouaram/httpcore/rx"
	"github.com/sabouaram/httpcore/tx"
)

// DirHandler renders a sortable HTML index for a directory, the
// fallback FileHandler delegates to when a "/"-suffixed request has no
// matching index file, per §4.11.
type DirHandler struct {
	Config *Config
}

// NewDirHandler builds a DirHandler sharing cfg with the FileHandler
// that delegates to it.
func NewDirHandler(cfg *Config) *DirHandler {
	return &DirHandler{Config: cfg}
}

type dirEntry struct {
	Name  string
	IsDir bool
	Size  int64
}

// Serve lists dirPath's entries as an HTML table, sorted per the
// request's "sort" (name|size) and "order" (asc|desc) query params,
// defaulting to name ascending.
func (h *DirHandler) Serve(rxReq *rx.Rx, txResp *tx.Tx, dirPath string) error {
	f, err := os.Open(dirPath)
	if err != nil {
		return notFound(txResp, err)
	}
	defer f.Close()

	infos, err := f.Readdir(-1)
	if err != nil {
		return internalError(txResp, err)
	}

	entries := make([]dirEntry, 0, len(infos))
	for _, fi := range infos {
		entries = append(entries, dirEntry{Name: fi.Name(), IsDir: fi.IsDir(), Size: fi.Size()})
	}

	by := firstQuery(rxReq, "sort")
	desc := firstQuery(rxReq, "order") == "desc"

	sort.Slice(entries, func(i, j int) bool {
		var less bool
		switch by {
		case "size":
			less = entries[i].Size < entries[j].Size
		default:
			less = strings.ToLower(entries[i].Name) < strings.ToLower(entries[j].Name)
		}
		if desc {
			return !less
		}
		return less
	})

	body := renderIndex(rxReq.PathInfo, entries)

	txResp.SetStatus(http.StatusOK, "")
	txResp.SetHeader("Content-Type", "text/html; charset=utf-8")
	txResp.SetContentLength(int64(len(body)))

	if rxReq.Method != http.MethodHead {
		if _, werr := txResp.WriteBody(body); werr != nil {
			return werr
		}
	}

	return txResp.FinishOutput()
}

func firstQuery(rxReq *rx.Rx, key string) string {
	if v, ok := rxReq.Query[key]; ok && len(v) > 0 {
		return v[0]
	}
	return ""
}

func renderIndex(pathInfo string, entries []dirEntry) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "<html><head><title>Index of %s</title></head><body>\n", html.EscapeString(pathInfo))
	fmt.Fprintf(&b, "<h1>Index of %s</h1>\n<table>\n", html.EscapeString(pathInfo))
	fmt.Fprint(&b, "<tr><th>Name</th><th>Size</th></tr>\n")
	fmt.Fprint(&b, "<tr><td><a href=\"../\">../</a></td><td>-</td></tr>\n")

	for _, e := range entries {
		name := e.Name
		size := fmt.Sprintf("%d", e.Size)
		if e.IsDir {
			name += "/"
			size = "-"
		}

		href := path.Join(pathInfo, e.Name)
		if e.IsDir {
			href += "/"
		}

		fmt.Fprintf(&b, "<tr><td><a href=\"%s\">%s</a></td><td>%s</td></tr>\n",
			html.EscapeString(href), html.EscapeString(name), size)
	}

	fmt.Fprint(&b, "</table></body></html>\n")

	return []byte(b.String())
}
