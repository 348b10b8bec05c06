package response

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/webapi/proxyutil"

	"github.com/xxxsen/docqa/internal/pkg/errcode"
	appErr "github.com/xxxsen/docqa/internal/pkg/errors"
)

type codeErr struct {
	code uint32
	msg  string
}

func (e codeErr) Error() string {
	return e.msg
}

func (e codeErr) Code() uint32 {
	return e.code
}

func AsCodeErr(code uint32, msg string) error {
	return codeErr{code: code, msg: msg}
}

func Success(c *gin.Context, data interface{}) {
	proxyutil.SuccessJson(c, data)
}

func Error(c *gin.Context, code int, message string) {
	proxyutil.FailJson(c, 200, AsCodeErr(uint32(code), message))
}

// CodeOf maps an error kind onto the envelope code.
func CodeOf(err error) int {
	switch {
	case appErr.IsNotFound(err):
		return errcode.ErrNotFound
	case appErr.IsInvalid(err):
		return errcode.ErrInvalid
	case errors.Is(err, appErr.ErrUnsupportedFormat):
		return errcode.ErrUnsupportedFormat
	case errors.Is(err, appErr.ErrDocumentParsing):
		return errcode.ErrInvalidFile
	case errors.Is(err, appErr.ErrChunking):
		return errcode.ErrInvalid
	case appErr.IsIngestion(err), appErr.IsEmbedding(err):
		return errcode.ErrIngestFailed
	case appErr.IsVectorStore(err):
		return errcode.ErrStoreUnavailable
	case errors.Is(err, appErr.ErrUnavailable):
		return errcode.ErrAIUnavailable
	default:
		return errcode.ErrInternal
	}
}
