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
	"bufio"
	"bytes"
	"fmt"
	"mime"
	"net/textproto"
	"os"
	"strconv"

	liberr "github.com/sabouaram/httpcore/errors"
	"github.com/sabouaram/httpcore/rx"
)

type uploadState int

const (
	uploadPreamble uploadState = iota
	uploadHeader
	uploadData
	uploadDone
)

// Upload incrementally parses a multipart/form-data body per §4.12, one
// Feed call at a time as bytes arrive, mirroring chunked.Decoder's
// Feed-at-a-time style. It writes a file part's bytes straight to a
// temp file as they are fed; nothing in this module installs it as
// rx.Rx.BodySink, so the request body is still buffered on rx.Rx.Body.
type Upload struct {
	cfg   *Config
	rx    *rx.Rx
	delim []byte // "\r\n--" + boundary, matched between parts
	first []byte // "--" + boundary, matched for the opening boundary
	buf   []byte
	state uploadState

	fieldName   string
	fileName    string
	contentType string
	size        int64
	tempFile    *os.File
	tempPath    string
	fieldValue  []byte

	err error
}

// NewUpload builds an Upload that writes file parts under cfg.UploadDir
// and mirrors both file and plain-field parts into req's request
// params (rx.Rx.Query), per §4.12.
func NewUpload(cfg *Config, req *rx.Rx, boundary string) *Upload {
	return &Upload{
		cfg:   cfg,
		rx:    req,
		delim: []byte("\r\n--" + boundary),
		first: []byte("--" + boundary),
	}
}

// Feed parses as much of data as forms complete parts. Call it for
// every chunk of decoded body the connection delivers; the final call
// arrives when BodyComplete fires and the trailing boundary is already
// in hand.
func (u *Upload) Feed(data []byte) error {
	if u.err != nil {
		return u.err
	}
	u.buf = append(u.buf, data...)

	for {
		switch u.state {
		case uploadPreamble:
			if !u.advancePreamble() {
				return nil
			}

		case uploadHeader:
			idx := bytes.Index(u.buf, []byte("\r\n\r\n"))
			if idx < 0 {
				return nil
			}
			header := u.buf[:idx]
			u.buf = u.buf[idx+4:]
			if err := u.startPart(header); err != nil {
				u.err = err
				return err
			}
			u.state = uploadData

		case uploadData:
			if done, err := u.advanceData(); err != nil {
				u.err = err
				return err
			} else if !done {
				return nil
			}

		case uploadDone:
			return nil
		}
	}
}

func (u *Upload) advancePreamble() bool {
	idx := bytes.Index(u.buf, u.first)
	if idx < 0 {
		if len(u.buf) > len(u.first) {
			u.buf = u.buf[len(u.buf)-len(u.first):]
		}
		return false
	}

	rest := u.buf[idx+len(u.first):]
	if len(rest) < 2 {
		u.buf = u.buf[idx:]
		return false
	}
	if bytes.HasPrefix(rest, []byte("--")) {
		u.state = uploadDone
		u.buf = nil
		return false
	}

	nl := bytes.Index(rest, []byte("\r\n"))
	if nl < 0 {
		u.buf = u.buf[idx:]
		return false
	}

	u.buf = rest[nl+2:]
	u.state = uploadHeader
	return true
}

// advanceData flushes data bytes up to the next boundary delimiter,
// keeping back a tail long enough that a delimiter split across two
// Feed calls is never missed.
func (u *Upload) advanceData() (bool, error) {
	idx := bytes.Index(u.buf, u.delim)
	if idx < 0 {
		keep := len(u.delim)
		if len(u.buf) > keep {
			if err := u.writePart(u.buf[:len(u.buf)-keep]); err != nil {
				return false, err
			}
			u.buf = u.buf[len(u.buf)-keep:]
		}
		return false, nil
	}

	rest := u.buf[idx+len(u.delim):]
	if len(rest) < 2 {
		return false, nil
	}

	if err := u.writePart(u.buf[:idx]); err != nil {
		return false, err
	}
	if err := u.finishPart(); err != nil {
		return false, err
	}

	if bytes.HasPrefix(rest, []byte("--")) {
		u.state = uploadDone
		u.buf = nil
		return false, nil
	}

	nl := bytes.Index(rest, []byte("\r\n"))
	if nl < 0 {
		u.buf = nil
		u.state = uploadHeader
		return false, nil
	}

	u.buf = rest[nl+2:]
	u.state = uploadHeader
	return true, nil
}

func (u *Upload) startPart(header []byte) error {
	tp := textproto.NewReader(bufio.NewReader(bytes.NewReader(append(header, "\r\n\r\n"...))))
	hdr, err := tp.ReadMIMEHeader()
	if err != nil && len(hdr) == 0 {
		return liberr.CodeParseHeader.Error(err)
	}

	_, params, _ := mime.ParseMediaType(hdr.Get("Content-Disposition"))
	u.fieldName = params["name"]
	u.fileName = params["filename"]
	u.contentType = hdr.Get("Content-Type")
	u.fieldValue = nil
	u.size = 0
	u.tempFile = nil
	u.tempPath = ""

	if u.fileName != "" {
		dir := u.cfg.UploadDir
		if dir == "" {
			dir = os.TempDir()
		}
		f, err := os.CreateTemp(dir, "upload-*")
		if err != nil {
			return err
		}
		u.tempFile = f
		u.tempPath = f.Name()
	}

	return nil
}

func (u *Upload) writePart(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	u.size += int64(len(data))
	if u.cfg.MaxUploadSize > 0 && u.size > u.cfg.MaxUploadSize {
		return liberr.CodeLimitUpload.Error(fmt.Errorf("upload part exceeds %d bytes", u.cfg.MaxUploadSize))
	}

	if u.tempFile != nil {
		_, err := u.tempFile.Write(data)
		return err
	}

	u.fieldValue = append(u.fieldValue, data...)
	return nil
}

// finishPart closes a file part's temp file and records it on rx.Files,
// or folds a plain field's value into rx.Query; both mirror the part
// into request params (FILE_*_FILENAME/CLIENT_FILENAME/CONTENT_TYPE/
// SIZE/NAME for file parts) per §4.12.
func (u *Upload) finishPart() error {
	if u.tempFile == nil {
		if u.fieldName != "" && u.rx != nil {
			u.rx.Query[u.fieldName] = append(u.rx.Query[u.fieldName], string(u.fieldValue))
		}
		return nil
	}

	if err := u.tempFile.Close(); err != nil {
		return err
	}

	uf := rx.UploadFile{
		FieldName:   u.fieldName,
		FileName:    u.fileName,
		ContentType: u.contentType,
		Size:        u.size,
		TempPath:    u.tempPath,
	}

	if u.rx != nil {
		u.rx.Files = append(u.rx.Files, uf)

		prefix := "FILE_" + u.fieldName
		u.rx.Query[prefix+"_FILENAME"] = []string{u.fileName}
		u.rx.Query[prefix+"_CLIENT_FILENAME"] = []string{u.fileName}
		u.rx.Query[prefix+"_CONTENT_TYPE"] = []string{u.contentType}
		u.rx.Query[prefix+"_SIZE"] = []string{strconv.FormatInt(u.size, 10)}
		u.rx.Query[prefix+"_NAME"] = []string{u.fieldName}
	}

	u.tempFile = nil
	u.tempPath = ""
	return nil
}

// Cleanup removes every uploaded part's temp file. Nothing in this
// module calls it automatically.
func (u *Upload) Cleanup() {
	for _, f := range u.rx.Files {
		os.Remove(f.TempPath)
	}
}
