package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Enrollment Gateway API",
        "description": "Backend for the multi-step school enrollment wizard",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Operator sessions"},
        {"name": "Users", "description": "Operator account management"},
        {"name": "Drafts", "description": "Enrollment wizard drafts"},
        {"name": "Files", "description": "Staged uploads"},
        {"name": "Lookups", "description": "Core API reference searches"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate operator",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollment-drafts": {
            "post": {
                "tags": ["Drafts"],
                "summary": "Open an enrollment draft",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OpenDraftRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Draft already open for the student"}
                }
            }
        },
        "/enrollment-drafts/{id}": {
            "get": {
                "tags": ["Drafts"],
                "summary": "Get the wizard state",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found"}
                }
            },
            "delete": {
                "tags": ["Drafts"],
                "summary": "Cancel the draft",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Cancelled"}
                }
            }
        },
        "/enrollment-drafts/{id}/student": {
            "put": {
                "tags": ["Drafts"],
                "summary": "Save the student step",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/StudentPatchRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollment-drafts/{id}/tutors": {
            "put": {
                "tags": ["Drafts"],
                "summary": "Save the tutor step",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/TutorSetRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollment-drafts/{id}/registration": {
            "put": {
                "tags": ["Drafts"],
                "summary": "Save the registration step",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RegistrationRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollment-drafts/{id}/payment-plan": {
            "put": {
                "tags": ["Drafts"],
                "summary": "Save the payment step",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PaymentPlanRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollment-drafts/{id}/documents": {
            "post": {
                "tags": ["Drafts"],
                "summary": "Attach a staged document",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/AttachDocumentRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollment-drafts/{id}/commit": {
            "post": {
                "tags": ["Drafts"],
                "summary": "Commit the draft",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Committed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Draft incomplete"},
                    "502": {"description": "Commit failed and was rolled back"}
                }
            }
        },
        "/enrollment-drafts/{id}/receipt": {
            "get": {
                "tags": ["Drafts"],
                "summary": "Download the enrollment receipt",
                "produces": ["application/pdf", "text/csv"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "format", "in": "query", "required": false, "type": "string", "enum": ["pdf", "csv"]}
                ],
                "responses": {
                    "200": {"description": "Receipt export"},
                    "412": {"description": "Draft not committed"}
                }
            }
        },
        "/enrollment-drafts/{id}/receipt-link": {
            "post": {
                "tags": ["Drafts"],
                "summary": "Issue a signed receipt link",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Signed token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "412": {"description": "Draft not committed"}
                }
            }
        },
        "/receipts/download": {
            "get": {
                "tags": ["Drafts"],
                "summary": "Download a receipt via signed token",
                "produces": ["application/pdf"],
                "parameters": [
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "PDF receipt"},
                    "401": {"description": "Invalid or expired token"}
                }
            }
        },
        "/enrollment-drafts/files/photo": {
            "post": {
                "tags": ["Files"],
                "summary": "Stage a student photo",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Staged", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollment-drafts/files/document": {
            "post": {
                "tags": ["Files"],
                "summary": "Stage an enrollment document",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Staged", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/lookups/tutors": {
            "get": {
                "tags": ["Lookups"],
                "summary": "Search existing tutors",
                "parameters": [
                    {"name": "q", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            },
            "required": ["email", "password"]
        },
        "OpenDraftRequest": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "kind": {"type": "string", "enum": ["REREGISTRATION", "FIRST_REGISTRATION"]}
            }
        },
        "StudentPatchRequest": {
            "type": "object",
            "properties": {
                "fields": {"type": "object"},
                "photoFileId": {"type": "string"}
            }
        },
        "TutorSetRequest": {
            "type": "object",
            "properties": {
                "existing": {"type": "array", "items": {"type": "object"}},
                "new": {"type": "array", "items": {"type": "object"}}
            }
        },
        "RegistrationRequest": {
            "type": "object",
            "properties": {
                "classId": {"type": "string"},
                "academicYearId": {"type": "string"},
                "registrationDate": {"type": "string"}
            },
            "required": ["classId", "academicYearId", "registrationDate"]
        },
        "PaymentPlanRequest": {
            "type": "object",
            "properties": {
                "entries": {"type": "array", "items": {"type": "object"}}
            }
        },
        "AttachDocumentRequest": {
            "type": "object",
            "properties": {
                "documentTypeId": {"type": "string"},
                "label": {"type": "string"},
                "fileId": {"type": "string"}
            },
            "required": ["documentTypeId", "label", "fileId"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
