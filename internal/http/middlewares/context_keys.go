package middlewares

const (
	CtxRequestID = "request_id"

	ctxEmailKey    = "auth.email"
	ctxNameKey     = "auth.name"
	ctxPhotoURLKey = "auth.photoURL"
	ctxRoleKey     = "auth.role"
)
