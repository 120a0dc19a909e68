package server

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
)

var errBadKey = errors.New("key must be an absolute, clean instance path")

// normBase turns a URL prefix into "" or "/a/b".
func normBase(bp string) string {
	bp = strings.Trim(strings.TrimSpace(bp), "/")
	if bp == "" {
		return ""
	}
	return "/" + bp
}

// checkKey accepts registry keys as NewKey produces them: absolute paths that
// filepath.Clean leaves alone apart from a trailing separator.
func checkKey(key string) error {
	if key == "" || !filepath.IsAbs(key) {
		return errBadKey
	}
	clean := filepath.Clean(key)
	if clean != key && clean != strings.TrimRight(key, string(filepath.Separator)) {
		return errBadKey
	}
	return nil
}

func fail(c *gin.Context, code int, err error) {
	c.JSON(code, errorResp{Error: err.Error()})
}

func writeOK(c *gin.Context) { c.JSON(http.StatusOK, okResp{OK: true}) }
