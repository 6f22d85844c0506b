// Package docs holds the OpenAPI description served at /swagger.
// Regenerate with: swag init -g cmd/api/main.go -o docs
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
        "/projects": {
            "get": {"tags": ["Projects"], "summary": "List projects", "security": [{"BearerAuth": []}, {"ApiKeyAuth": []}], "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Projects"], "summary": "Create project", "security": [{"BearerAuth": []}, {"ApiKeyAuth": []}], "responses": {"201": {"description": "Created"}, "409": {"description": "Contact number already used"}}}
        },
        "/projects/{id}": {
            "get": {"tags": ["Projects"], "summary": "Get project", "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}},
            "put": {"tags": ["Projects"], "summary": "Update project intake fields", "responses": {"200": {"description": "OK"}}},
            "delete": {"tags": ["Projects"], "summary": "Delete project", "responses": {"204": {"description": "No Content"}}}
        },
        "/workflow/graph": {
            "get": {"tags": ["Workflow"], "summary": "Stage graph", "responses": {"200": {"description": "OK"}}}
        },
        "/projects/{id}/transition": {
            "post": {"tags": ["Workflow"], "summary": "Move a project to another stage", "responses": {"200": {"description": "OK"}, "422": {"description": "Transition not permitted"}}}
        },
        "/projects/{id}/payments": {
            "get": {"tags": ["Projects"], "summary": "Payment history", "responses": {"200": {"description": "OK"}}},
            "post": {"tags": ["Workflow"], "summary": "Record a payment", "responses": {"201": {"description": "Created"}}}
        },
        "/projects/{id}/installation": {
            "put": {"tags": ["Workflow"], "summary": "Record installation progress", "responses": {"200": {"description": "OK"}}}
        },
        "/alerts": {
            "get": {"tags": ["Alerts"], "summary": "List active alerts", "responses": {"200": {"description": "OK"}}}
        },
        "/alerts/generate": {
            "post": {"tags": ["Alerts"], "summary": "Run the delay alert scan now", "responses": {"200": {"description": "OK"}}}
        }
    },
    "securityDefinitions": {
        "ApiKeyAuth": {"type": "apiKey", "name": "x-api-key", "in": "header"},
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/api/v1",
	Schemes:          []string{},
	Title:            "Incial CRM API",
	Description:      "Sales project workflow: stage transitions, payments, installation and delay alerts",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
