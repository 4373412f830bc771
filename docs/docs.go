// Package docs holds the Swagger/OpenAPI document served by the Swagger UI
// route. Regenerate with `swag init -g cmd/server/main.go` after changing
// handler annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/conversations": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Conversations"],
                "summary": "List conversations",
                "parameters": [
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "304": {"description": "Not Modified"}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Conversations"],
                "summary": "Create a conversation",
                "parameters": [
                    {"name": "request", "in": "body", "schema": {"type": "object"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object"}}
                }
            }
        },
        "/conversations/{id}": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Conversations"],
                "summary": "Get a conversation",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "404": {"description": "Not Found", "schema": {"type": "object"}}
                }
            },
            "put": {
                "consumes": ["application/json"],
                "tags": ["Conversations"],
                "summary": "Rename a conversation",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"name": "request", "in": "body", "schema": {"type": "object"}}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"type": "object"}}
                }
            },
            "delete": {
                "tags": ["Conversations"],
                "summary": "Delete a conversation",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"type": "object"}}
                }
            }
        },
        "/conversations/{id}/messages": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Messages"],
                "summary": "List messages in a conversation",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "page_size", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "304": {"description": "Not Modified"},
                    "404": {"description": "Not Found", "schema": {"type": "object"}}
                }
            },
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Messages"],
                "summary": "Send a message and get the assistant reply",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {"type": "string", "name": "Idempotency-Key", "in": "header"},
                    {"name": "request", "in": "body", "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object"}},
                    "404": {"description": "Not Found", "schema": {"type": "object"}}
                }
            }
        },
        "/documents": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Documents"],
                "summary": "List knowledge base documents",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            },
            "post": {
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["Documents"],
                "summary": "Upload a document (PDF or TXT)",
                "parameters": [
                    {"type": "file", "name": "file", "in": "formData", "required": true}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"type": "object"}},
                    "422": {"description": "Unprocessable Entity", "schema": {"type": "object"}}
                }
            }
        },
        "/documents/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Documents"],
                "summary": "Knowledge base statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            }
        },
        "/documents/{id}": {
            "delete": {
                "tags": ["Documents"],
                "summary": "Delete a document and its chunks",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"type": "object"}}
                }
            }
        },
        "/search": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["Documents"],
                "summary": "Semantic search over the knowledge base",
                "parameters": [
                    {"name": "request", "in": "body", "schema": {"type": "object"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "400": {"description": "Bad Request", "schema": {"type": "object"}}
                }
            }
        },
        "/memories": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Memories"],
                "summary": "List conversation memories",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            }
        },
        "/memories/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Memories"],
                "summary": "Memory statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            }
        },
        "/memories/{id}": {
            "delete": {
                "tags": ["Memories"],
                "summary": "Delete a memory",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true}
                ],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"type": "object"}}
                }
            }
        },
        "/guests": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Wedding"],
                "summary": "List wedding guests",
                "parameters": [
                    {"type": "string", "name": "filter", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            }
        },
        "/guests/stats": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Wedding"],
                "summary": "Guest and RSVP statistics",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            }
        },
        "/events": {
            "get": {
                "produces": ["application/json"],
                "tags": ["Wedding"],
                "summary": "List wedding events in chronological order",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}}
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Wedding Assistant API",
	Description:      "Retrieval-augmented wedding planning assistant: conversations, document knowledge base, web search and cross-conversation memory.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
