// Package docs holds the OpenAPI description served at /swagger.
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
        "/register": {
            "post": {
                "tags": ["Users"],
                "summary": "Register a user and return a token",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.RegisterRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/handler.AuthResponse"}}, "409": {"description": "Email taken"}}
            }
        },
        "/login": {
            "post": {
                "tags": ["Users"],
                "summary": "Log in and return a token",
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.LoginRequest"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handler.AuthResponse"}}, "401": {"description": "Invalid credentials"}}
            }
        },
        "/boards": {
            "get": {"tags": ["Boards"], "summary": "Boards the user owns or is a member of", "security": [{"BearerAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Boards"], "summary": "Create a board", "security": [{"BearerAuth": []}], "responses": {"201": {"description": "Created"}}}
        },
        "/boards/{id}/lists/reorder": {
            "post": {
                "tags": ["Lists"],
                "summary": "Move one list (from, to) or apply a full order",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "Lists in their new order"}}
            }
        },
        "/lists/{id}/cards/reorder": {
            "post": {
                "tags": ["Cards"],
                "summary": "Move one card (from, to) or apply a full order",
                "security": [{"BearerAuth": []}],
                "parameters": [{"in": "path", "name": "id", "type": "string", "required": true}],
                "responses": {"200": {"description": "Cards in their new order"}}
            }
        },
        "/cards/{id}/move": {
            "post": {
                "tags": ["Cards"],
                "summary": "Move a card to an index in another list of the same board",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.MoveCardRequest"}}
                ],
                "responses": {"200": {"description": "The moved card"}}
            }
        },
        "/cards/{id}/labels/{labelId}": {
            "post": {
                "tags": ["Labels"],
                "summary": "Attach a label of the card's board to the card",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "path", "name": "labelId", "type": "string", "required": true}
                ],
                "responses": {"204": {"description": "Attached"}, "400": {"description": "Label belongs to another board"}}
            },
            "delete": {
                "tags": ["Labels"],
                "summary": "Detach a label from the card",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "path", "name": "labelId", "type": "string", "required": true}
                ],
                "responses": {"204": {"description": "Detached"}, "404": {"description": "Label is not attached"}}
            }
        },
        "/items/{id}/move": {
            "post": {
                "tags": ["Checklists"],
                "summary": "Move a checklist item to an index in another checklist of the same card",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handler.MoveItemRequest"}}
                ],
                "responses": {"200": {"description": "The moved item"}}
            }
        },
        "/ws/boards/{id}": {
            "get": {
                "tags": ["Sessions"],
                "summary": "Open a live board session over websocket",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"in": "path", "name": "id", "type": "string", "required": true},
                    {"in": "query", "name": "access_token", "type": "string"}
                ],
                "responses": {"101": {"description": "Switching protocols"}, "403": {"description": "Access denied"}}
            }
        }
    },
    "definitions": {
        "handler.RegisterRequest": {
            "type": "object",
            "required": ["email", "name", "password"],
            "properties": {"email": {"type": "string"}, "name": {"type": "string"}, "password": {"type": "string"}}
        },
        "handler.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {"email": {"type": "string"}, "password": {"type": "string"}}
        },
        "handler.AuthResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "user": {"type": "object", "properties": {"id": {"type": "string"}, "email": {"type": "string"}, "name": {"type": "string"}}}
            }
        },
        "handler.MoveCardRequest": {
            "type": "object",
            "required": ["list_id"],
            "properties": {"list_id": {"type": "string"}, "index": {"type": "integer"}}
        },
        "handler.MoveItemRequest": {
            "type": "object",
            "required": ["checklist_id"],
            "properties": {"checklist_id": {"type": "string"}, "index": {"type": "integer"}}
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and JWT token",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Kanban API",
	Description:      "Boards, ordered lists and cards, labels, checklists, comments and live board sessions.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
