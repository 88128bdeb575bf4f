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
        "/ws": {
            "get": {
                "tags": ["realtime"],
                "summary": "Open the real-time connection",
                "parameters": [
                    {"type": "string", "description": "Access token", "name": "token", "in": "query"}
                ],
                "responses": {
                    "101": {"description": "Switching Protocols"},
                    "401": {"description": "Token is missing or invalid"}
                }
            }
        },
        "/queue": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["queue"],
                "summary": "Caller's place in the queue",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not queued"}}
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["queue"],
                "summary": "Join the queue for a bracket of the given size",
                "parameters": [
                    {"description": "Bracket size (2 or 4)", "name": "input", "in": "body", "required": true,
                     "schema": {"type": "object", "properties": {"size": {"type": "integer"}}}}
                ],
                "responses": {
                    "200": {"description": "Queued"},
                    "201": {"description": "Queue filled, tournament created"},
                    "404": {"description": "Caller is offline or has no match settings"},
                    "409": {"description": "Already queued"},
                    "422": {"description": "Invalid size"}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["queue"],
                "summary": "Leave the queue",
                "responses": {"204": {"description": "No Content"}}
            }
        },
        "/tournaments": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["tournaments"],
                "summary": "Create a bracket tournament",
                "parameters": [
                    {"description": "Participants (2 or 4 user ids)", "name": "input", "in": "body", "required": true,
                     "schema": {"type": "object", "properties": {"participant_ids": {"type": "array", "items": {"type": "string"}}}}}
                ],
                "responses": {
                    "201": {"description": "Tournament created"},
                    "400": {"description": "Malformed body or duplicate participants"},
                    "404": {"description": "Creator has no match settings"},
                    "422": {"description": "Bracket size is not 2 or 4"}
                }
            }
        },
        "/tournaments/{tournamentID}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["tournaments"],
                "summary": "Tournament with participants and bracket",
                "parameters": [{"type": "string", "name": "tournamentID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Tournament not found"}}
            }
        },
        "/tournaments/{tournamentID}/accept": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["tournaments"],
                "summary": "Accept participation",
                "parameters": [{"type": "string", "name": "tournamentID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Caller does not take part"}, "409": {"description": "Tournament is not awaiting acceptance"}}
            }
        },
        "/tournaments/{tournamentID}/decline": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["tournaments"],
                "summary": "Decline participation",
                "parameters": [{"type": "string", "name": "tournamentID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "403": {"description": "Caller does not take part"}, "409": {"description": "Tournament already finished or cancelled"}}
            }
        },
        "/tournaments/{tournamentID}/contention": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["tournaments"],
                "summary": "Whether the caller can still win the tournament",
                "parameters": [{"type": "string", "name": "tournamentID", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Tournament not found"}}
            }
        },
        "/matches/{matchID}/points": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["matches"],
                "summary": "Record a point for the caller",
                "parameters": [{"type": "string", "name": "matchID", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Caller does not play in this match"},
                    "404": {"description": "Match not found"},
                    "409": {"description": "Match is not being played"}
                }
            }
        },
        "/users/online": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "Users currently connected",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/users/me/tournaments": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["tournaments"],
                "summary": "Tournaments of the caller",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/users/me/settings": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "Caller's match settings",
                "responses": {"200": {"description": "OK"}, "404": {"description": "No settings yet"}}
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["users"],
                "summary": "Create or replace the caller's match settings",
                "parameters": [
                    {"description": "Points needed to win a match", "name": "input", "in": "body", "required": true,
                     "schema": {"type": "object", "properties": {"max_score": {"type": "integer"}}}}
                ],
                "responses": {"200": {"description": "OK"}, "422": {"description": "max_score must be positive"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Tournament Arena API",
	Description:      "Queue, bracket and live match server.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
