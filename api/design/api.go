package design

import (
	. "goa.design/goa/v3/dsl"
)

var _ = API("grantdesk", func() {
	Title("GrantDesk API")
	Description("Premium support inquiries and live chat between founders and the GrantDesk admin team")
	Version("1.0.0")
	Server("api", func() {
		Host("localhost", func() {
			URI("http://localhost:8000")
			URI("ws://localhost:8000")
		})
	})
})

// Common error types
var Unauthorized = Type("Unauthorized", func() {
	Description("Unauthorized access")
	Attribute("message", String, "Error message", func() {
		Example("Unauthorized")
	})
})

var Forbidden = Type("Forbidden", func() {
	Description("Caller may not access the resource")
	Attribute("message", String, "Error message", func() {
		Example("not allowed to access this inquiry")
	})
})

var NotFound = Type("NotFound", func() {
	Description("Resource not found")
	Attribute("message", String, "Error message", func() {
		Example("inquiry not found")
	})
})

var BadRequest = Type("BadRequest", func() {
	Description("Bad request")
	Attribute("message", String, "Error message", func() {
		Example("message text is required")
	})
})

var PersistenceError = Type("PersistenceError", func() {
	Description("The document store is unavailable")
	Attribute("message", String, "Error message")
})

// JWT Security
var JWTAuth = JWTSecurity("jwt", func() {
	Description("JWT authentication")
	Scope("admin", "Admin access")
	Scope("staff", "Staff access")
})

// Health check
var _ = Service("health", func() {
	Description("Health check service")
	Method("check", func() {
		Result(HealthResult)
		HTTP(func() {
			GET("/health")
			Response(StatusOK)
			Response(StatusServiceUnavailable)
		})
	})
})

var HealthResult = ResultType("HealthResult", func() {
	Attribute("uptime", Int, "Seconds since start")
	Attribute("version", String, "Build version")
	Attribute("status", MapOf(String, String), "Per dependency status")
})

// Authentication service
var _ = Service("auth", func() {
	Description("Authentication service")
	Error("unauthorized", Unauthorized)
	Error("forbidden", Forbidden)
	Error("bad_request", BadRequest)

	Method("login", func() {
		Description("Authenticate user and return JWT token")
		Payload(LoginPayload)
		Result(LoginResult)
		Error("unauthorized")
		HTTP(func() {
			POST("/api/v1/auth/login")
			Response(StatusOK)
			Response("unauthorized", StatusUnauthorized)
		})
	})

	Method("me", func() {
		Description("Get current user information")
		Security(JWTAuth)
		Payload(TokenPayload)
		Result(UserResult)
		Error("unauthorized")
		HTTP(func() {
			GET("/api/v1/auth/me")
			Response(StatusOK)
			Response("unauthorized", StatusUnauthorized)
		})
	})

	Method("create_user", func() {
		Description("Create a founder or admin team account (Admin only)")
		Security(JWTAuth, func() {
			Scope("admin")
		})
		Payload(CreateUserPayload)
		Result(UserResult)
		Error("bad_request")
		Error("unauthorized")
		Error("forbidden")
		HTTP(func() {
			POST("/api/v1/auth/users")
			Response(StatusCreated)
			Response("bad_request", StatusBadRequest)
			Response("unauthorized", StatusUnauthorized)
			Response("forbidden", StatusForbidden)
		})
	})
})

var LoginPayload = Type("LoginPayload", func() {
	Attribute("username", String, "Username", func() {
		MinLength(1)
		Example("ada")
	})
	Attribute("password", String, "Password", func() {
		MinLength(1)
	})
	Required("username", "password")
})

var LoginResult = ResultType("LoginResult", func() {
	Attribute("access_token", String, "JWT access token")
	Attribute("token_type", String, "Token type", func() {
		Default("bearer")
		Example("bearer")
	})
	Required("access_token", "token_type")
})

var TokenPayload = Type("TokenPayload", func() {
	Token("token", String, "JWT token")
})

var UserResult = ResultType("UserResult", func() {
	Attribute("id", String, "Stable user id stamped on inquiries and messages", func() {
		Format(FormatUUID)
	})
	Attribute("username", String, "Username")
	Attribute("email", String, "Email address")
	Attribute("full_name", String, "Full name")
	Attribute("is_active", Boolean, "Is user active")
	Attribute("is_admin", Boolean, "Is user admin")
	Attribute("is_staff", Boolean, "Is user staff")
	Attribute("created_at", String, "Creation timestamp")
	Attribute("updated_at", String, "Update timestamp")
	Attribute("last_login", String, "Last login timestamp")
	Required("id", "username", "email", "is_active", "is_admin", "is_staff", "created_at")
})

var CreateUserPayload = Type("CreateUserPayload", func() {
	Token("token", String, "JWT token")
	Attribute("username", String, "Username", func() {
		MinLength(1)
		Example("mira")
	})
	Attribute("email", String, "Email address", func() {
		Format(FormatEmail)
		Example("mira@grantdesk.io")
	})
	Attribute("password", String, "Password", func() {
		MinLength(8)
	})
	Attribute("full_name", String, "Full name")
	Attribute("is_active", Boolean, "Is user active", func() {
		Default(true)
	})
	Attribute("is_admin", Boolean, "Is user admin", func() {
		Default(false)
	})
	Attribute("is_staff", Boolean, "Is user staff", func() {
		Default(false)
	})
	Required("username", "email", "password")
})

// Chat service
var _ = Service("chat", func() {
	Description("Premium inquiries, their message logs and live conversation feeds")
	Error("bad_request", BadRequest)
	Error("unauthorized", Unauthorized)
	Error("forbidden", Forbidden)
	Error("not_found", NotFound)
	Error("persistence_error", PersistenceError, func() {
		Temporary()
	})
	HTTP(func() {
		Response("persistence_error", StatusServiceUnavailable)
	})

	Method("submit_support_request", func() {
		Description("Record a support request. Works anonymously; a bearer token, when sent, links the caller to the inquiry.")
		NoSecurity()
		Payload(SupportRequestPayload)
		Result(CreatedResult)
		Error("bad_request")
		HTTP(func() {
			POST("/api/v1/support-requests")
			Response(StatusCreated)
			Response("bad_request", StatusBadRequest)
		})
	})

	Method("start_chat_session", func() {
		Description("Open a chat-originated inquiry with its first message")
		Security(JWTAuth)
		Payload(StartChatPayload)
		Result(CreatedResult)
		Error("bad_request")
		Error("unauthorized")
		HTTP(func() {
			POST("/api/v1/chat/sessions")
			Response(StatusCreated)
			Response("bad_request", StatusBadRequest)
			Response("unauthorized", StatusUnauthorized)
		})
	})

	Method("list_mine", func() {
		Description("List the caller's inquiries, matched by user id or by account email for older inquiries")
		Security(JWTAuth)
		Payload(TokenPayload)
		Result(ArrayOf(InquiryResult))
		Error("unauthorized")
		HTTP(func() {
			GET("/api/v1/inquiries/mine")
			Response(StatusOK)
			Response("unauthorized", StatusUnauthorized)
		})
	})

	Method("list", func() {
		Description("List every inquiry, most recently active first (Staff/Admin only)")
		Security(JWTAuth, func() {
			Scope("staff")
		})
		Payload(TokenPayload)
		Result(ArrayOf(InquiryResult))
		Error("unauthorized")
		Error("forbidden")
		HTTP(func() {
			GET("/api/v1/inquiries")
			Response(StatusOK)
			Response("unauthorized", StatusUnauthorized)
			Response("forbidden", StatusForbidden)
		})
	})

	Method("get", func() {
		Description("Get one inquiry")
		Security(JWTAuth)
		Payload(InquiryIDPayload)
		Result(InquiryResult)
		Error("unauthorized")
		Error("forbidden")
		Error("not_found")
		HTTP(func() {
			GET("/api/v1/inquiries/{id}")
			Response(StatusOK)
			Response("unauthorized", StatusUnauthorized)
			Response("forbidden", StatusForbidden)
			Response("not_found", StatusNotFound)
		})
	})

	Method("list_messages", func() {
		Description("Get the message log of an inquiry in conversation order")
		Security(JWTAuth)
		Payload(InquiryIDPayload)
		Result(ArrayOf(MessageResult))
		Error("unauthorized")
		Error("forbidden")
		Error("not_found")
		HTTP(func() {
			GET("/api/v1/inquiries/{id}/messages")
			Response(StatusOK)
			Response("unauthorized", StatusUnauthorized)
			Response("forbidden", StatusForbidden)
			Response("not_found", StatusNotFound)
		})
	})

	Method("send_message", func() {
		Description("Append a message to an inquiry. Admin team replies mark it responded, founder messages mark it in progress.")
		Security(JWTAuth)
		Payload(SendMessagePayload)
		Result(CreatedResult)
		Error("bad_request")
		Error("unauthorized")
		Error("forbidden")
		Error("not_found")
		HTTP(func() {
			POST("/api/v1/inquiries/{id}/messages")
			Response(StatusCreated)
			Response("bad_request", StatusBadRequest)
			Response("unauthorized", StatusUnauthorized)
			Response("forbidden", StatusForbidden)
			Response("not_found", StatusNotFound)
		})
	})

	Method("live", func() {
		Description("Stream the full message log on every change")
		Security(JWTAuth)
		Payload(InquiryIDPayload)
		StreamingResult(FeedFrame)
		Error("unauthorized")
		Error("forbidden")
		Error("not_found")
		HTTP(func() {
			GET("/api/v1/inquiries/{id}/messages/live")
			Param("token")
			Response(StatusOK)
			Response("unauthorized", StatusUnauthorized)
			Response("forbidden", StatusForbidden)
			Response("not_found", StatusNotFound)
		})
	})

	Method("last_live", func() {
		Description("Stream the latest message of an inquiry on every change")
		Security(JWTAuth)
		Payload(InquiryIDPayload)
		StreamingResult(FeedFrame)
		Error("unauthorized")
		Error("forbidden")
		Error("not_found")
		HTTP(func() {
			GET("/api/v1/inquiries/{id}/messages/last/live")
			Param("token")
			Response(StatusOK)
			Response("unauthorized", StatusUnauthorized)
			Response("forbidden", StatusForbidden)
			Response("not_found", StatusNotFound)
		})
	})
})

var SupportRequestPayload = Type("SupportRequestPayload", func() {
	Attribute("name", String, "Founder name", func() {
		MinLength(1)
		Example("Ada Lovelace")
	})
	Attribute("email", String, "Contact email", func() {
		Format(FormatEmail)
		Example("ada@example.com")
	})
	Attribute("phone", String, "Contact phone")
	Attribute("specific_needs", String, "What the founder needs help with", func() {
		MinLength(1)
		Example("Need help with MVP grant")
	})
	Required("name", "email", "specific_needs")
})

var StartChatPayload = Type("StartChatPayload", func() {
	Token("token", String, "JWT token")
	Attribute("name", String, "Founder name, defaults to the account name")
	Attribute("email", String, "Contact email, defaults to the account email")
	Attribute("first_message", String, "Opening message", func() {
		MinLength(1)
		Example("Hello")
	})
	Required("first_message")
})

var InquiryIDPayload = Type("InquiryIDPayload", func() {
	Token("token", String, "JWT token")
	Attribute("id", String, "Inquiry ID", func() {
		Format(FormatUUID)
	})
	Required("id")
})

var SendMessagePayload = Type("SendMessagePayload", func() {
	Token("token", String, "JWT token")
	Attribute("id", String, "Inquiry ID", func() {
		Format(FormatUUID)
	})
	Attribute("text", String, "Message text", func() {
		MinLength(1)
		Example("Hi, how can I help?")
	})
	Required("id", "text")
})

var CreatedResult = ResultType("CreatedResult", func() {
	Attribute("id", String, "ID of the created document")
	Attribute("message", String, "Confirmation message")
	Required("id")
})

var InquiryResult = ResultType("InquiryResult", func() {
	Attribute("id", String, "Inquiry ID")
	Attribute("name", String, "Founder name")
	Attribute("email", String, "Contact email")
	Attribute("phone", String, "Contact phone")
	Attribute("user_id", String, "Owning user id, absent on older inquiries")
	Attribute("specific_needs", String, "What the founder needs help with")
	Attribute("status", String, "Lifecycle status", func() {
		Enum("new", "in_progress", "responded")
	})
	Attribute("created_at", String, "Creation timestamp", func() {
		Format(FormatDateTime)
	})
	Attribute("updated_at", String, "Last activity timestamp", func() {
		Format(FormatDateTime)
	})
	Required("id", "name", "email", "specific_needs", "status", "created_at", "updated_at")
})

var MessageResult = ResultType("MessageResult", func() {
	Attribute("id", String, "Message ID")
	Attribute("inquiry_id", String, "Owning inquiry")
	Attribute("sender", String, "Who wrote the message", func() {
		Enum("user", "admin")
	})
	Attribute("sender_id", String, "Author user id")
	Attribute("text", String, "Message text")
	Attribute("created_at", String, "Server timestamp", func() {
		Format(FormatDateTime)
	})
	Required("id", "inquiry_id", "sender", "text", "created_at")
})

var FeedFrame = ResultType("FeedFrame", func() {
	Description("One snapshot of a live conversation feed")
	Attribute("inquiry_id", String, "Inquiry ID")
	Attribute("messages", ArrayOf(MessageResult), "Current snapshot")
	Required("inquiry_id", "messages")
})
