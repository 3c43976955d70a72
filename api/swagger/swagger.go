package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "School Tenant API",
        "description": "Multi-school core: school selection, tenant-scoped records and activity logging",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "tags": [
        {"name": "Authentication", "description": "Sign-in and sign-out"},
        {"name": "Session", "description": "School and role selection"},
        {"name": "Community", "description": "Staff, students and parents of the selected school"},
        {"name": "Access", "description": "Tenant-scoped access checks"},
        {"name": "Activities", "description": "Activity log of the selected school"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Logout current session",
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Get current user",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/session/schools": {
            "get": {
                "tags": ["Session"],
                "summary": "List selectable schools",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/session/school": {
            "get": {
                "tags": ["Session"],
                "summary": "Get the selected school",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "No school selected", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "put": {
                "tags": ["Session"],
                "summary": "Select the school the session acts for",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SelectSchoolRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "No role in school", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Session"],
                "summary": "Clear the selected school",
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/session/role": {
            "put": {
                "tags": ["Session"],
                "summary": "Select the acting role in the selected school",
                "parameters": [{"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/SelectRoleRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/staff": {
            "get": {"tags": ["Community"], "summary": "List staff", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}},
            "post": {"tags": ["Community"], "summary": "Create staff member", "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/staff/{id}": {
            "put": {
                "tags": ["Community"],
                "summary": "Update staff member",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found or unauthorized access", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students": {
            "get": {"tags": ["Community"], "summary": "List students", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}},
            "post": {"tags": ["Community"], "summary": "Create student", "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/students/{id}": {
            "put": {
                "tags": ["Community"],
                "summary": "Update student",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found or unauthorized access", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/parents": {
            "get": {"tags": ["Community"], "summary": "List parents", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}},
            "post": {"tags": ["Community"], "summary": "Create parent", "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/parents/{id}": {
            "put": {
                "tags": ["Community"],
                "summary": "Update parent",
                "parameters": [{"name": "id", "in": "path", "required": true, "type": "string"}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found or unauthorized access", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/access/{kind}/{id}": {
            "get": {
                "tags": ["Access"],
                "summary": "Check access to a resource",
                "parameters": [
                    {"name": "kind", "in": "path", "required": true, "type": "string"},
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/activities": {
            "get": {
                "tags": ["Activities"],
                "summary": "List activities",
                "parameters": [
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "role", "in": "query", "type": "string"},
                    {"name": "days", "in": "query", "type": "integer"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            },
            "post": {
                "tags": ["Activities"],
                "summary": "Record an activity",
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/activities/recent": {
            "get": {"tags": ["Activities"], "summary": "Recent activities", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/activities/stats": {
            "get": {"tags": ["Activities"], "summary": "Activity counts per type", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/activities/users/{userId}": {
            "get": {
                "tags": ["Activities"],
                "summary": "Activities performed by or about a user",
                "parameters": [{"name": "userId", "in": "path", "required": true, "type": "string"}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/activities/export": {
            "get": {
                "tags": ["Activities"],
                "summary": "Export activities",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [{"name": "format", "in": "query", "type": "string", "enum": ["csv", "pdf"]}],
                "responses": {"200": {"description": "File"}}
            }
        },
        "/activities/backfill": {
            "post": {"tags": ["Activities"], "summary": "Backfill historical activities", "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}}
        },
        "/activities/initialize": {
            "post": {"tags": ["Activities"], "summary": "Record activity logging initialisation", "responses": {"204": {"description": "No Content"}}}
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "SelectSchoolRequest": {
            "type": "object",
            "required": ["schoolId"],
            "properties": {"schoolId": {"type": "string", "format": "uuid"}}
        },
        "SelectRoleRequest": {
            "type": "object",
            "required": ["role"],
            "properties": {"role": {"type": "string"}}
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
