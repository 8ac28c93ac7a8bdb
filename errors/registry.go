package errors

func init() {
	RegisterIdFctMessage(CodeParseRequestLine, func(CodeError) string { return "malformed request line" })
	RegisterIdFctMessage(CodeParseHeader, func(CodeError) string { return "malformed header" })
	RegisterIdFctMessage(CodeParseChunk, func(CodeError) string { return "malformed chunk framing" })
	RegisterIdFctMessage(CodeParseURI, func(CodeError) string { return "malformed uri" })
	RegisterIdFctMessage(CodeParseWebSocketFrame, func(CodeError) string { return "malformed websocket frame" })

	RegisterIdFctMessage(CodeLimitURI, func(CodeError) string { return "uri exceeds configured size" })
	RegisterIdFctMessage(CodeLimitHeader, func(CodeError) string { return "headers exceed configured size" })
	RegisterIdFctMessage(CodeLimitBody, func(CodeError) string { return "body exceeds configured size" })
	RegisterIdFctMessage(CodeLimitForm, func(CodeError) string { return "form body exceeds configured size" })
	RegisterIdFctMessage(CodeLimitUpload, func(CodeError) string { return "upload exceeds configured size" })
	RegisterIdFctMessage(CodeLimitRequests, func(CodeError) string { return "too many requests" })

	RegisterIdFctMessage(CodeAuthMissing, func(CodeError) string { return "missing credentials" })
	RegisterIdFctMessage(CodeAuthInvalid, func(CodeError) string { return "invalid credentials" })
	RegisterIdFctMessage(CodeAuthForbidden, func(CodeError) string { return "not authorized" })
	RegisterIdFctMessage(CodeAuthNonceExpired, func(CodeError) string { return "digest nonce expired" })

	RegisterIdFctMessage(CodeNotFoundRoute, func(CodeError) string { return "no route matched" })
	RegisterIdFctMessage(CodeNotFoundFile, func(CodeError) string { return "file not found" })

	RegisterIdFctMessage(CodeCommsRead, func(CodeError) string { return "socket read failure" })
	RegisterIdFctMessage(CodeCommsWrite, func(CodeError) string { return "socket write failure" })
	RegisterIdFctMessage(CodeCommsClosed, func(CodeError) string { return "connection closed" })

	RegisterIdFctMessage(CodeTimeoutParse, func(CodeError) string { return "request parse timeout" })
	RegisterIdFctMessage(CodeTimeoutInactivity, func(CodeError) string { return "inactivity timeout" })
	RegisterIdFctMessage(CodeTimeoutRequest, func(CodeError) string { return "request timeout" })

	RegisterIdFctMessage(CodeInternalState, func(CodeError) string { return "internal state error" })
	RegisterIdFctMessage(CodeInternalHandler, func(CodeError) string { return "handler error" })

	RegisterStatus(CodeParseRequestLine, 400)
	RegisterStatus(CodeParseHeader, 400)
	RegisterStatus(CodeParseChunk, 400)
	RegisterStatus(CodeParseURI, 414)
	RegisterStatus(CodeParseWebSocketFrame, 400)
	RegisterStatus(CodeLimitURI, 414)
	RegisterStatus(CodeLimitHeader, 413)
	RegisterStatus(CodeLimitBody, 413)
	RegisterStatus(CodeLimitForm, 413)
	RegisterStatus(CodeLimitUpload, 413)
	RegisterStatus(CodeLimitRequests, 503)
	RegisterStatus(CodeAuthMissing, 401)
	RegisterStatus(CodeAuthInvalid, 401)
	RegisterStatus(CodeAuthForbidden, 403)
	RegisterStatus(CodeAuthNonceExpired, 401)
	RegisterStatus(CodeNotFoundRoute, 404)
	RegisterStatus(CodeNotFoundFile, 404)
	RegisterStatus(CodeTimeoutParse, 408)
	RegisterStatus(CodeTimeoutInactivity, 408)
	RegisterStatus(CodeTimeoutRequest, 408)
	RegisterStatus(CodeInternalState, 500)
	RegisterStatus(CodeInternalHandler, 500)
}
