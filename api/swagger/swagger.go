package swagger

import "github.com/swaggo/swag"

// Probes (/health, /ready, /metrics) live outside basePath and are not documented here.
const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Cemetery API",
        "description": "Plot registry with exhumation and reservation request workflows",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "securityDefinitions": {
        "BearerAuth": {
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    },
    "tags": [
        {
            "name": "Plots",
            "description": "Plot registry and occupant records"
        },
        {
            "name": "Documents",
            "description": "Requester document uploads"
        },
        {
            "name": "Exhumations",
            "description": "Exhumation request workflow"
        },
        {
            "name": "Reservations",
            "description": "Plot reservation workflow"
        },
        {
            "name": "Exports",
            "description": "Registry reports"
        }
    ],
    "paths": {
        "/plots": {
            "get": {
                "tags": [
                    "Plots"
                ],
                "summary": "Search registered plots",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "section",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "level",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "status",
                        "in": "query",
                        "type": "string",
                        "description": "Comma separated statuses"
                    },
                    {
                        "name": "q",
                        "in": "query",
                        "type": "string",
                        "description": "Plot id or occupant name"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized"
                    }
                }
            },
            "post": {
                "tags": [
                    "Plots"
                ],
                "summary": "Register a plot",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/CreatePlotRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                }
            }
        },
        "/plots/stats": {
            "get": {
                "tags": [
                    "Plots"
                ],
                "summary": "Count plots by status",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized"
                    }
                }
            }
        },
        "/plots/{id}": {
            "get": {
                "tags": [
                    "Plots"
                ],
                "summary": "Get a plot; unregistered ids default to available (meta.registered=false)",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized"
                    }
                }
            },
            "put": {
                "tags": [
                    "Plots"
                ],
                "summary": "Edit a plot and its occupant",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/UpdatePlotRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                }
            },
            "delete": {
                "tags": [
                    "Plots"
                ],
                "summary": "Delete a plot record",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "204": {
                        "description": "No Content"
                    },
                    "404": {
                        "description": "Plot not registered"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                }
            }
        },
        "/plots/{id}/clear": {
            "post": {
                "tags": [
                    "Plots"
                ],
                "summary": "Remove the occupant from a plot",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/ClearPlotRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                }
            }
        },
        "/documents": {
            "post": {
                "tags": [
                    "Documents"
                ],
                "summary": "Upload a supporting document",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "kind",
                        "in": "formData",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "file",
                        "in": "formData",
                        "required": true,
                        "type": "file"
                    }
                ],
                "consumes": [
                    "multipart/form-data"
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized"
                    }
                }
            }
        },
        "/documents/{token}": {
            "get": {
                "tags": [
                    "Documents"
                ],
                "summary": "Download a document by signed token",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "token",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "produces": [
                    "application/octet-stream"
                ],
                "responses": {
                    "200": {
                        "description": "Document bytes"
                    },
                    "403": {
                        "description": "Link expired or not owner"
                    },
                    "404": {
                        "description": "Not found"
                    },
                    "401": {
                        "description": "Unauthorized"
                    }
                }
            }
        },
        "/exhumations": {
            "post": {
                "tags": [
                    "Exhumations"
                ],
                "summary": "Submit an exhumation request",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SubmitExhumationRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized"
                    }
                }
            },
            "get": {
                "tags": [
                    "Exhumations"
                ],
                "summary": "List exhumation requests",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "status",
                        "in": "query",
                        "type": "string",
                        "description": "Comma separated statuses"
                    },
                    {
                        "name": "plotId",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                }
            }
        },
        "/exhumations/validate": {
            "post": {
                "tags": [
                    "Exhumations"
                ],
                "summary": "Validate one step of the exhumation form",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "step",
                        "in": "query",
                        "type": "integer",
                        "description": "Form step, zero based"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SubmitExhumationRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized"
                    }
                }
            }
        },
        "/exhumations/mine": {
            "get": {
                "tags": [
                    "Exhumations"
                ],
                "summary": "List the caller's exhumation requests",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "status",
                        "in": "query",
                        "type": "string",
                        "description": "Comma separated statuses"
                    },
                    {
                        "name": "plotId",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized"
                    }
                }
            }
        },
        "/exhumations/{id}": {
            "get": {
                "tags": [
                    "Exhumations"
                ],
                "summary": "Get an exhumation request",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized"
                    }
                }
            }
        },
        "/exhumations/{id}/transition": {
            "post": {
                "tags": [
                    "Exhumations"
                ],
                "summary": "Approve, reject or complete an exhumation request",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/TransitionExhumationRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Invalid transition",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                }
            }
        },
        "/reservations": {
            "post": {
                "tags": [
                    "Reservations"
                ],
                "summary": "Reserve a plot",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/SubmitReservationRequest"
                        }
                    }
                ],
                "responses": {
                    "201": {
                        "description": "Created",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "400": {
                        "description": "Validation error",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized"
                    }
                }
            },
            "get": {
                "tags": [
                    "Reservations"
                ],
                "summary": "List reservations",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "status",
                        "in": "query",
                        "type": "string",
                        "description": "Comma separated statuses"
                    },
                    {
                        "name": "plotId",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                }
            }
        },
        "/reservations/mine": {
            "get": {
                "tags": [
                    "Reservations"
                ],
                "summary": "List the caller's reservations",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "status",
                        "in": "query",
                        "type": "string",
                        "description": "Comma separated statuses"
                    },
                    {
                        "name": "plotId",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "page",
                        "in": "query",
                        "type": "integer"
                    },
                    {
                        "name": "limit",
                        "in": "query",
                        "type": "integer"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized"
                    }
                }
            }
        },
        "/reservations/{id}": {
            "get": {
                "tags": [
                    "Reservations"
                ],
                "summary": "Get a reservation",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized"
                    }
                }
            }
        },
        "/reservations/{id}/cancel": {
            "post": {
                "tags": [
                    "Reservations"
                ],
                "summary": "Cancel a reservation",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Invalid transition",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized"
                    }
                }
            }
        },
        "/reservations/{id}/transition": {
            "post": {
                "tags": [
                    "Reservations"
                ],
                "summary": "Move a reservation through its lifecycle",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "id",
                        "in": "path",
                        "required": true,
                        "type": "string"
                    },
                    {
                        "name": "payload",
                        "in": "body",
                        "required": true,
                        "schema": {
                            "$ref": "#/definitions/TransitionReservationRequest"
                        }
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "409": {
                        "description": "Invalid transition",
                        "schema": {
                            "$ref": "#/definitions/ResponseEnvelope"
                        }
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                }
            }
        },
        "/exports/plots": {
            "get": {
                "tags": [
                    "Exports"
                ],
                "summary": "Export the plot registry",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "format",
                        "in": "query",
                        "type": "string",
                        "description": "csv or pdf"
                    },
                    {
                        "name": "section",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "status",
                        "in": "query",
                        "type": "string"
                    }
                ],
                "produces": [
                    "text/csv",
                    "application/pdf"
                ],
                "responses": {
                    "200": {
                        "description": "File"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                }
            }
        },
        "/exports/exhumations": {
            "get": {
                "tags": [
                    "Exports"
                ],
                "summary": "Export exhumation requests",
                "security": [
                    {
                        "BearerAuth": []
                    }
                ],
                "parameters": [
                    {
                        "name": "format",
                        "in": "query",
                        "type": "string",
                        "description": "csv or pdf"
                    },
                    {
                        "name": "status",
                        "in": "query",
                        "type": "string"
                    },
                    {
                        "name": "plotId",
                        "in": "query",
                        "type": "string"
                    }
                ],
                "produces": [
                    "text/csv",
                    "application/pdf"
                ],
                "responses": {
                    "200": {
                        "description": "File"
                    },
                    "401": {
                        "description": "Unauthorized"
                    },
                    "403": {
                        "description": "Forbidden"
                    }
                }
            }
        }
    },
    "definitions": {
        "CreatePlotRequest": {
            "type": "object",
            "properties": {
                "plot_id": {
                    "type": "string"
                },
                "section": {
                    "type": "string"
                },
                "level": {
                    "type": "integer"
                },
                "plot_number": {
                    "type": "string"
                },
                "status": {
                    "type": "string"
                },
                "notes": {
                    "type": "string"
                },
                "occupant_name": {
                    "type": "string"
                },
                "date_of_birth": {
                    "type": "string"
                },
                "date_of_death": {
                    "type": "string"
                },
                "date_of_interment": {
                    "type": "string"
                },
                "cause_of_death": {
                    "type": "string"
                },
                "religion": {
                    "type": "string"
                },
                "family_name": {
                    "type": "string"
                },
                "next_of_kin": {
                    "type": "string"
                },
                "contact_number": {
                    "type": "string"
                },
                "address": {
                    "type": "string"
                }
            },
            "required": [
                "plot_id"
            ]
        },
        "UpdatePlotRequest": {
            "type": "object",
            "properties": {
                "section": {
                    "type": "string"
                },
                "level": {
                    "type": "integer"
                },
                "plot_number": {
                    "type": "string"
                },
                "status": {
                    "type": "string"
                },
                "notes": {
                    "type": "string"
                },
                "occupant_name": {
                    "type": "string"
                },
                "date_of_birth": {
                    "type": "string"
                },
                "date_of_death": {
                    "type": "string"
                },
                "date_of_interment": {
                    "type": "string"
                },
                "cause_of_death": {
                    "type": "string"
                },
                "religion": {
                    "type": "string"
                },
                "family_name": {
                    "type": "string"
                },
                "next_of_kin": {
                    "type": "string"
                },
                "contact_number": {
                    "type": "string"
                },
                "address": {
                    "type": "string"
                }
            }
        },
        "ClearPlotRequest": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string",
                    "enum": [
                        "available",
                        "exhumed"
                    ]
                },
                "note": {
                    "type": "string"
                }
            }
        },
        "SubmitExhumationRequest": {
            "type": "object",
            "properties": {
                "plot_id": {
                    "type": "string"
                },
                "request_type": {
                    "type": "string",
                    "enum": [
                        "IN",
                        "OUT"
                    ]
                },
                "deceased_name": {
                    "type": "string"
                },
                "date_of_death": {
                    "type": "string"
                },
                "relationship": {
                    "type": "string"
                },
                "requestor_name": {
                    "type": "string"
                },
                "requestor_email": {
                    "type": "string"
                },
                "requestor_phone": {
                    "type": "string"
                },
                "requestor_address": {
                    "type": "string"
                },
                "reason": {
                    "type": "string"
                },
                "preferred_date": {
                    "type": "string"
                },
                "new_location": {
                    "type": "string"
                },
                "alternative_location": {
                    "type": "string"
                },
                "destination_plot_id": {
                    "type": "string"
                },
                "valid_id_url": {
                    "type": "string"
                },
                "death_certificate_url": {
                    "type": "string"
                },
                "birth_certificate_url": {
                    "type": "string"
                },
                "affidavit_url": {
                    "type": "string"
                },
                "burial_permit_url": {
                    "type": "string"
                }
            }
        },
        "TransitionExhumationRequest": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string",
                    "enum": [
                        "approved",
                        "rejected",
                        "completed"
                    ]
                },
                "notes": {
                    "type": "string"
                },
                "exhumation_date": {
                    "type": "string"
                },
                "exhumation_team": {
                    "type": "string"
                }
            },
            "required": [
                "status"
            ]
        },
        "SubmitReservationRequest": {
            "type": "object",
            "properties": {
                "plot_id": {
                    "type": "string"
                },
                "is_for_self": {
                    "type": "boolean"
                },
                "beneficiary_name": {
                    "type": "string"
                },
                "beneficiary_relationship": {
                    "type": "string"
                },
                "requestor_name": {
                    "type": "string"
                },
                "requestor_email": {
                    "type": "string"
                },
                "requestor_phone": {
                    "type": "string"
                },
                "requestor_address": {
                    "type": "string"
                },
                "reservation_type": {
                    "type": "string",
                    "enum": [
                        "PRE_NEED",
                        "IMMEDIATE",
                        "TRANSFER"
                    ]
                },
                "valid_id_url": {
                    "type": "string"
                },
                "proof_of_relationship_url": {
                    "type": "string"
                },
                "notes": {
                    "type": "string"
                }
            }
        },
        "TransitionReservationRequest": {
            "type": "object",
            "properties": {
                "status": {
                    "type": "string",
                    "enum": [
                        "APPROVED",
                        "REJECTED",
                        "PAID",
                        "ACTIVE",
                        "CANCELLED"
                    ]
                },
                "notes": {
                    "type": "string"
                },
                "payment_reference": {
                    "type": "string"
                }
            },
            "required": [
                "status"
            ]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {
                    "type": "integer"
                },
                "page_size": {
                    "type": "integer"
                },
                "total_count": {
                    "type": "integer"
                }
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {
                    "type": "string"
                },
                "message": {
                    "type": "string"
                },
                "status": {
                    "type": "integer"
                },
                "details": {
                    "type": "object",
                    "additionalProperties": {
                        "type": "string"
                    }
                }
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {
                    "type": "object"
                },
                "error": {
                    "$ref": "#/definitions/APIError"
                },
                "pagination": {
                    "$ref": "#/definitions/Pagination"
                },
                "meta": {
                    "type": "object"
                }
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
