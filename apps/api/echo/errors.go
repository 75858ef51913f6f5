package echoapi

import (
	"net/http"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/takharruj/core"
	"github.com/trezcool/takharruj/core/project"
	"github.com/trezcool/takharruj/core/proposal"
	"github.com/trezcool/takharruj/core/user"
	"github.com/trezcool/takharruj/services/metrics"
)

const headerAcceptLanguage = "Accept-Language"

const (
	msgUnauthenticated    = "user not authenticated"
	msgForbidden          = "permission denied"
	msgNotFound           = "not found"
	msgTooManyRequests    = "too many requests"
	msgStorageUnavailable = "service temporarily unavailable"
	msgInternal           = "internal server error"
)

var (
	errUnauthorized       = echo.NewHTTPError(http.StatusUnauthorized, msgUnauthenticated)
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, msgForbidden)
	errHttpNotFound       = echo.NewHTTPError(http.StatusNotFound, msgNotFound)
	errTooManyRequests    = echo.NewHTTPError(http.StatusTooManyRequests, msgTooManyRequests)
	errServiceUnavailable = echo.NewHTTPError(http.StatusServiceUnavailable, msgStorageUnavailable)
)

// httpMessages localizes transport-level messages. Unknown messages are sent as they are.
var httpMessages = map[string]map[string]string{
	core.LangArabic: {
		msgUnauthenticated:    "يجب تسجيل الدخول أولًا",
		msgForbidden:          "ليس لديك صلاحية الوصول",
		msgNotFound:           "غير موجود",
		msgTooManyRequests:    "طلبات كثيرة جدًا، حاول مرة أخرى لاحقًا",
		msgStorageUnavailable: "الخدمة غير متاحة مؤقتًا، حاول مرة أخرى",
		msgInternal:           "حدث خطأ غير متوقع",

		middleware.ErrJWTMissing.Message.(string): "يجب تسجيل الدخول أولًا",

		project.ErrNotFound.Error():     "المشروع غير موجود",
		project.ErrForbidden.Error():    "إنشاء المشاريع متاح للمشرفين فقط",
		proposal.ErrNotFound.Error():    "المقترح غير موجود",
		user.ErrNotFound.Error():        "المستخدم غير موجود",
		user.ErrEmailExists.Error():     "يوجد مستخدم آخر بهذا البريد الإلكتروني",
		user.ErrRoleUnresolved.Error():  "تعذر تحديد دور المستخدم",
		user.ErrUpdateForbidden.Error(): "تعديل الملف الشخصي متاح للطلاب فقط",
	},
	core.LangEnglish: {
		msgUnauthenticated:    "user not authenticated",
		msgForbidden:          "permission denied",
		msgNotFound:           "not found",
		msgTooManyRequests:    "too many requests, try again later",
		msgStorageUnavailable: "service temporarily unavailable, try again",
		msgInternal:           "internal server error",

		middleware.ErrJWTMissing.Message.(string): "user not authenticated",

		project.ErrNotFound.Error():     "project not found",
		project.ErrForbidden.Error():    "only teachers may create projects",
		proposal.ErrNotFound.Error():    "proposal not found",
		user.ErrNotFound.Error():        "user not found",
		user.ErrEmailExists.Error():     "a user with this email already exists",
		user.ErrRoleUnresolved.Error():  "user role could not be resolved",
		user.ErrUpdateForbidden.Error(): "only students may update their profile",
	},
}

func requestTranslator(ctx echo.Context, uni *ut.UniversalTranslator) ut.Translator {
	return core.FindTranslator(uni, ctx.Request().Header.Get(headerAcceptLanguage))
}

// violationStatus maps a business rule violation to its HTTP status.
func violationStatus(v *proposal.Violation) int {
	switch v {
	case proposal.ErrUnauthorized:
		return http.StatusForbidden
	case proposal.ErrInvalidTransition:
		return http.StatusUnprocessableEntity
	}
	return http.StatusConflict
}

// sentinelStatus maps the domain's sentinel errors to HTTP statuses.
func sentinelStatus(err error) (int, bool) {
	switch err {
	case project.ErrNotFound, proposal.ErrNotFound, user.ErrNotFound:
		return http.StatusNotFound, true
	case project.ErrForbidden, user.ErrRoleUnresolved, user.ErrUpdateForbidden:
		return http.StatusForbidden, true
	}
	return 0, false
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(
	logger core.Logger,
	uni *ut.UniversalTranslator,
	collector *metrics.Collector,
	signalShutdown func(),
) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}
		trans := requestTranslator(ctx, uni)

		if v, ok := proposal.AsViolation(err); ok {
			collector.ObserveViolation(v.Code)
			writeError(ctx, violationStatus(v), echo.Map{"error": core.Translate(trans, v.Code), "code": v.Code})
			return
		}

		cause := errors.Cause(err)
		if status, ok := sentinelStatus(cause); ok {
			writeError(ctx, status, echo.Map{"error": core.Translate(trans, cause.Error())})
			return
		}

		switch origErr := cause.(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(trans)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = core.Translate(trans, fErr.Error)
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			if core.IsStorageUnavailable(err) {
				code = errServiceUnavailable.Code
				message = errServiceUnavailable.Message
				logger.Error(msgStorageUnavailable, err, contextUserOrEmpty(ctx))
				break
			}

			// any other error is a server error
			code = http.StatusInternalServerError
			message = msgInternal
			logger.Error(msgInternal, errors.Wrap(err, msgInternal), contextUserOrEmpty(ctx))

			// shutting down...
			if core.IsShutdown(err) {
				signalShutdown()
			}
		}

		if ctx.Echo().Debug && code >= http.StatusInternalServerError {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": core.Translate(trans, m)}
		}
		writeError(ctx, code, message)
	}
}

func writeError(ctx echo.Context, code int, message interface{}) {
	if ctx.Response().Committed {
		return
	}
	var err error
	if ctx.Request().Method == http.MethodHead { // Issue #608
		err = ctx.NoContent(code)
	} else {
		err = ctx.JSON(code, message)
	}
	if err != nil {
		ctx.Echo().Logger.Error(err)
	}
}

func contextUserOrEmpty(ctx echo.Context) user.User {
	if usr, err := getContextUser(ctx); err == nil {
		return usr
	}
	var usr user.User
	if claims, err := getContextClaims(ctx); err == nil {
		usr.ID = claims.Subject
		usr.Name = claims.Name
		usr.Email = claims.Email
	}
	return usr
}
