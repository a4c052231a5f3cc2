package httpx

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/zstd"
)

// maxBodyBytes 限制单个响应体（解码后）的大小。卡表页通常在数 MB 以内。
const maxBodyBytes = 64 << 20

// ReadBody 读取并按 Content-Encoding 解码响应体。
func ReadBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, nil
	}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, err
	}
	return DecodeBody(resp.Header.Get("Content-Encoding"), raw)
}

// DecodeBody 支持 gzip / deflate / br / zstd 以及它们的逗号串联（按逆序解码）。
// 空或 identity 原样返回；未知编码返回错误。
func DecodeBody(contentEncoding string, body []byte) ([]byte, error) {
	encs := strings.Split(contentEncoding, ",")
	out := body
	for i := len(encs) - 1; i >= 0; i-- {
		enc := strings.ToLower(strings.TrimSpace(encs[i]))
		var err error
		switch enc {
		case "", "identity":
			continue
		case "gzip", "x-gzip":
			out, err = decodeGzip(out)
		case "deflate":
			out, err = decodeDeflate(out)
		case "br":
			out, err = readLimited(brotli.NewReader(bytes.NewReader(out)))
		case "zstd":
			out, err = decodeZstd(out)
		default:
			return nil, fmt.Errorf("不支持的 Content-Encoding：%q", enc)
		}
		if err != nil {
			return nil, fmt.Errorf("解码 %s 失败：%w", enc, err)
		}
	}
	return out, nil
}

func decodeGzip(b []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	return readLimited(zr)
}

// HTTP 的 deflate 实际多为 zlib 包装；头部不合法时回退为裸 deflate 流。
func decodeDeflate(b []byte) ([]byte, error) {
	if zr, err := zlib.NewReader(bytes.NewReader(b)); err == nil {
		defer zr.Close()
		return readLimited(zr)
	}
	fr := flate.NewReader(bytes.NewReader(b))
	defer fr.Close()
	return readLimited(fr)
}

func decodeZstd(b []byte) ([]byte, error) {
	d, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer d.Close()
	return d.DecodeAll(b, nil)
}

func readLimited(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxBodyBytes))
}
