// Package docs registers the OpenAPI description served at /swagger.
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
    "securityDefinitions": {
        "ArcherToken": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "paths": {
        "/health": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Service readiness and dependency status",
                "responses": {
                    "200": {"description": "ready", "schema": {"$ref": "#/definitions/types.HealthResponse"}},
                    "503": {"description": "a required dependency is down", "schema": {"$ref": "#/definitions/types.HealthResponse"}}
                }
            }
        },
        "/metrics": {
            "get": {
                "produces": ["application/json"],
                "tags": ["system"],
                "summary": "Request, analysis, upstream and rate limit counters",
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/targets": {
            "get": {
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Configured target types with their rings",
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.TargetsResponse"}}}
            }
        },
        "/analyze/pose": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Score a landmark sequence",
                "security": [{"ArcherToken": []}],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.PoseAnalyzeRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/analysis.PoseAnalysis"}},
                    "400": {"description": "invalid request", "schema": {"$ref": "#/definitions/errors.ErrorBody"}},
                    "422": {"description": "insufficient data", "schema": {"$ref": "#/definitions/errors.ErrorBody"}}
                }
            }
        },
        "/analyze/target": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Score detector output against a target type",
                "security": [{"ArcherToken": []}],
                "parameters": [{"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.TargetAnalyzeRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/analysis.TargetAnalysis"}},
                    "400": {"description": "invalid request or unsupported target type", "schema": {"$ref": "#/definitions/errors.ErrorBody"}},
                    "422": {"description": "no target detected", "schema": {"$ref": "#/definitions/errors.ErrorBody"}}
                }
            }
        },
        "/analyze/target/image": {
            "post": {
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Detect and score a target photo",
                "security": [{"ArcherToken": []}],
                "parameters": [
                    {"type": "file", "in": "formData", "name": "image", "required": true},
                    {"type": "string", "in": "formData", "name": "target_type", "default": "standard"},
                    {"type": "number", "in": "formData", "name": "distance", "default": 18},
                    {"type": "boolean", "in": "formData", "name": "detect_arrows"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/analysis.TargetAnalysis"}},
                    "502": {"description": "detector failed", "schema": {"$ref": "#/definitions/errors.ErrorBody"}},
                    "503": {"description": "detector unavailable", "schema": {"$ref": "#/definitions/errors.ErrorBody"}}
                }
            }
        },
        "/analyze/realtime": {
            "post": {
                "consumes": ["multipart/form-data"],
                "produces": ["application/json"],
                "tags": ["analysis"],
                "summary": "Analyze one camera frame",
                "parameters": [
                    {"type": "file", "in": "formData", "name": "frame", "required": true},
                    {"type": "string", "enum": ["pose", "target"], "in": "formData", "name": "type", "required": true}
                ],
                "responses": {
                    "200": {"description": "frame analysis for pose, quick analysis for target", "schema": {"type": "object"}},
                    "400": {"description": "invalid analysis type", "schema": {"$ref": "#/definitions/errors.ErrorBody"}},
                    "422": {"description": "no body detected", "schema": {"$ref": "#/definitions/errors.ErrorBody"}}
                }
            }
        },
        "/auth/token": {
            "post": {
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["archers"],
                "summary": "Issue an archer token",
                "parameters": [
                    {"in": "body", "name": "request", "required": true, "schema": {"$ref": "#/definitions/types.TokenRequest"}},
                    {"type": "string", "in": "header", "name": "X-Issuer-Key"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object"}},
                    "401": {"description": "missing or wrong issuer key", "schema": {"$ref": "#/definitions/errors.ErrorBody"}}
                }
            }
        },
        "/archers/me/sessions": {
            "get": {
                "produces": ["application/json"],
                "tags": ["archers"],
                "summary": "Recorded sessions, newest first",
                "security": [{"ArcherToken": []}],
                "parameters": [
                    {"type": "string", "enum": ["target", "pose"], "in": "query", "name": "kind"},
                    {"type": "integer", "in": "query", "name": "limit"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/archers/me/statistics": {
            "get": {
                "produces": ["application/json"],
                "tags": ["archers"],
                "summary": "Target statistics for a period",
                "security": [{"ArcherToken": []}],
                "parameters": [{"type": "string", "enum": ["daily", "weekly", "monthly", "all_time"], "in": "query", "name": "period"}],
                "responses": {"200": {"description": "OK", "schema": {"type": "object"}}}
            }
        },
        "/archers/me": {
            "delete": {
                "produces": ["application/json"],
                "tags": ["archers"],
                "summary": "Erase every recorded session of the archer",
                "security": [{"ArcherToken": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/types.ForgetResponse"}}}
            }
        }
    },
    "definitions": {
        "errors.ErrorBody": {
            "type": "object",
            "properties": {
                "error": {"type": "string"},
                "code": {"type": "string"},
                "category": {"type": "string"},
                "details": {"type": "object", "additionalProperties": {"type": "string"}},
                "reason": {"type": "string"},
                "request_id": {"type": "string"},
                "timestamp": {"type": "string"}
            }
        },
        "types.HealthResponse": {
            "type": "object",
            "properties": {
                "status": {"type": "string"},
                "timestamp": {"type": "string"},
                "version": {"type": "string"},
                "services": {"type": "object", "additionalProperties": {"type": "boolean"}},
                "dependencies": {"type": "object"}
            }
        },
        "types.TargetsResponse": {
            "type": "object",
            "properties": {"targets": {"type": "array", "items": {"type": "object"}}}
        },
        "types.PoseAnalyzeRequest": {
            "type": "object",
            "required": ["frames"],
            "properties": {
                "source_fps": {"type": "number"},
                "frame_rate": {"type": "integer", "default": 30},
                "save_keyframes": {"type": "boolean", "default": true},
                "frames": {"type": "array", "items": {"type": "array", "items": {"type": "object"}}}
            }
        },
        "types.TargetAnalyzeRequest": {
            "type": "object",
            "properties": {
                "target_type": {"type": "string", "default": "standard"},
                "distance": {"type": "number", "default": 18},
                "detect_arrows": {"type": "boolean", "default": true},
                "detections": {"type": "array", "items": {"type": "object"}}
            }
        },
        "types.TokenRequest": {
            "type": "object",
            "required": ["archer_id"],
            "properties": {"archer_id": {"type": "string"}}
        },
        "types.ForgetResponse": {
            "type": "object",
            "properties": {"archer_id": {"type": "string"}, "deleted": {"type": "integer"}}
        },
        "analysis.PoseAnalysis": {
            "type": "object",
            "properties": {
                "posture_scores": {"type": "array", "items": {"type": "object"}},
                "keyframes": {"type": "array", "items": {"type": "object"}},
                "analysis": {"type": "object"},
                "recommendations": {"type": "array", "items": {"type": "object"}},
                "frame_interval": {"type": "integer"},
                "frames_sampled": {"type": "integer"},
                "frames_skipped": {"type": "integer"}
            }
        },
        "analysis.TargetAnalysis": {
            "type": "object",
            "properties": {
                "target": {"type": "object"},
                "arrows": {"type": "array", "items": {"type": "object"}},
                "total_score": {"type": "integer"},
                "average_score": {"type": "number"},
                "no_arrow_detected": {"type": "boolean"},
                "grouping": {"type": "object"},
                "recommendations": {"type": "array", "items": {"type": "object"}}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Archery Analyzer API",
	Description:      "Posture and target scoring for archery training.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
