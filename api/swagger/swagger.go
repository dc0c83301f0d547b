package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "SMA Performance Report API",
        "description": "Score uploads, performance analytics and printable teacher reports",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": ["http", "https"],
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "tags": [
        {"name": "Auth", "description": "Service client tokens"},
        {"name": "Scores", "description": "Score and answer-sheet uploads"},
        {"name": "Performance", "description": "Batch analytics views"},
        {"name": "Reports", "description": "Asynchronous report exports"}
    ],
    "paths": {
        "/auth/token": {
            "post": {
                "tags": ["Auth"],
                "summary": "Exchange client credentials for an access token",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ClientTokenRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "401": {"description": "Invalid credentials", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Auth"],
                "summary": "Current caller claims",
                "security": [{"BearerAuth": []}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/scores/upload": {
            "post": {
                "tags": ["Scores"],
                "summary": "Upload score records for a batch",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ScoreUploadRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Validation error", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/scores/responses": {
            "post": {
                "tags": ["Scores"],
                "summary": "Upload per-question responses for one test",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ResponseUploadRequest"}}
                ],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/performance/trend": {
            "get": {
                "tags": ["Performance"],
                "summary": "Overall score trend over the visible test window",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"$ref": "#/parameters/BatchID"},
                    {"$ref": "#/parameters/TestNum"},
                    {"$ref": "#/parameters/StudentID"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "502": {"description": "Score source unavailable", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/performance/subjects": {
            "get": {
                "tags": ["Performance"],
                "summary": "Per-subject score trends",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"$ref": "#/parameters/BatchID"},
                    {"$ref": "#/parameters/TestNum"},
                    {"$ref": "#/parameters/StudentID"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/performance/donuts": {
            "get": {
                "tags": ["Performance"],
                "summary": "Correct, incorrect and skipped averages per subject",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"$ref": "#/parameters/BatchID"},
                    {"$ref": "#/parameters/TestNum"},
                    {"$ref": "#/parameters/StudentID"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/performance/improvement": {
            "get": {
                "tags": ["Performance"],
                "summary": "Percentage change between the two latest tests",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"$ref": "#/parameters/BatchID"},
                    {"$ref": "#/parameters/StudentID"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/performance/questions": {
            "get": {
                "tags": ["Performance"],
                "summary": "Question difficulty statistics",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"$ref": "#/parameters/BatchID"},
                    {"$ref": "#/parameters/TestNum"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "page_size", "in": "query", "type": "integer"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/performance/report": {
            "get": {
                "tags": ["Performance"],
                "summary": "Printable teacher report pages",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"$ref": "#/parameters/BatchID"},
                    {"$ref": "#/parameters/TestNum"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/students/{id}/progress": {
            "get": {
                "tags": ["Performance"],
                "summary": "One student's progress across tests",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"$ref": "#/parameters/BatchID"},
                    {"$ref": "#/parameters/TestNum"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Student not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/reports/generate": {
            "post": {
                "tags": ["Reports"],
                "summary": "Queue a report export",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ReportRequest"}}
                ],
                "responses": {"202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/reports/status/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Report job status",
                "security": [{"BearerAuth": []}],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}}
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Download a finished report through its signed token",
                "produces": ["application/pdf", "text/csv"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "401": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "parameters": {
        "BatchID": {"name": "batch_id", "in": "query", "required": true, "type": "string"},
        "TestNum": {"name": "test_num", "in": "query", "type": "string", "description": "Target test number, 0 for the latest window"},
        "StudentID": {"name": "student_id", "in": "query", "type": "string"}
    },
    "definitions": {
        "ClientTokenRequest": {
            "type": "object",
            "required": ["client_id", "client_secret"],
            "properties": {
                "client_id": {"type": "string"},
                "client_secret": {"type": "string"}
            }
        },
        "ScoreUploadRequest": {
            "type": "object",
            "required": ["batchId", "records"],
            "properties": {
                "batchId": {"type": "string"},
                "replace": {"type": "boolean"},
                "records": {"type": "array", "items": {"type": "object"}}
            }
        },
        "QuestionUpload": {
            "type": "object",
            "properties": {
                "questionNumber": {"type": "integer"},
                "subject": {"type": "string"},
                "responses": {"type": "object", "additionalProperties": {"type": "string"}}
            }
        },
        "ResponseUploadRequest": {
            "type": "object",
            "required": ["batchId", "testNum", "questions"],
            "properties": {
                "batchId": {"type": "string"},
                "testNum": {"type": "integer"},
                "questions": {"type": "array", "items": {"$ref": "#/definitions/QuestionUpload"}}
            }
        },
        "ReportRequest": {
            "type": "object",
            "required": ["type", "batchId"],
            "properties": {
                "type": {"type": "string", "enum": ["teacher_performance", "question_analysis", "student_progress"]},
                "batchId": {"type": "string"},
                "target": {"type": "string"},
                "studentId": {"type": "string"},
                "subject": {"type": "string"},
                "format": {"type": "string", "enum": ["pdf", "csv"]},
                "notifyEmail": {"type": "string"}
            }
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
