package apierrx

import (
	"errors"
	"net/http"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// HTTPStatus 提取 google api 错误对应的 http 状态码, 无法识别时返回 0
// REST 接口返回 *googleapi.Error, gRPC 接口返回带 status 的错误
func HTTPStatus(err error) int {
	if err == nil {
		return 0
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code
	}
	st, ok := status.FromError(err)
	if !ok {
		return 0
	}
	return fromCode(st.Code())
}

func fromCode(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.Internal, codes.Unknown, codes.DataLoss:
		return http.StatusInternalServerError
	default:
		return 0
	}
}

const errorInfoType = "type.googleapis.com/google.rpc.ErrorInfo"

// authReasons google.rpc.ErrorInfo 中表示凭证无效的 reason
// 无效或过期的 api key 返回的是 400 INVALID_ARGUMENT, 只能靠 reason 识别
var authReasons = map[string]struct{}{
	"API_KEY_INVALID":               {},
	"API_KEY_EXPIRED":               {},
	"API_KEY_SERVICE_BLOCKED":       {},
	"API_KEY_HTTP_REFERRER_BLOCKED": {},
	"API_KEY_IP_ADDRESS_BLOCKED":    {},
	"ACCESS_TOKEN_EXPIRED":          {},
	"CREDENTIALS_MISSING":           {},
}

// Reason 返回错误详情中 ErrorInfo 的 reason, 没有时返回空串
func Reason(err error) string {
	if err == nil {
		return ""
	}
	if ae, ok := apierror.FromError(err); ok && ae.Reason() != "" {
		return ae.Reason()
	}
	// 手动构造或 Body 已被消费的 googleapi.Error 只剩解码后的 Details
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return ""
	}
	for _, d := range gerr.Details {
		m, ok := d.(map[string]interface{})
		if !ok || m["@type"] != errorInfoType {
			continue
		}
		if reason, ok := m["reason"].(string); ok {
			return reason
		}
	}
	return ""
}

// IsAuth 凭证被拒绝: 401/403 或者 ErrorInfo reason 属于 authReasons
func IsAuth(err error) bool {
	code := HTTPStatus(err)
	if code == http.StatusUnauthorized || code == http.StatusForbidden {
		return true
	}
	_, ok := authReasons[Reason(err)]
	return ok
}

// IsRetryable 网络错误(无状态码)、限流以及 5xx 可重试, 鉴权失败不重试
func IsRetryable(err error) bool {
	if IsAuth(err) {
		return false
	}
	code := HTTPStatus(err)
	return code == 0 || code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
}
