package validators

import "go.mongodb.org/mongo-driver/bson"

var UsageStatValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"user_id",
			"vehicle_id",
			"group_id",
			"period_start",
			"period_end",
			"computed_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"vehicle_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"group_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"period_start": bson.M{
				"bsonType": "date",
			},

			"period_end": bson.M{
				"bsonType": "date",
			},

			"usage_percentage": bson.M{
				"bsonType": []string{"double", "int", "long"},
				"minimum":  0,
			},

			"computed_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var FairnessScoreValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"user_id",
			"vehicle_id",
			"group_id",
			"ownership_percentage",
			"usage_percentage",
			"fairness_score",
			"priority",
			"calculated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"user_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"vehicle_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"group_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"ownership_percentage": bson.M{
				"bsonType": []string{"double", "int", "long"},
				"minimum":  0,
				"maximum":  100,
			},

			"fairness_score": bson.M{
				"bsonType": []string{"double", "int", "long"},
				"minimum":  0,
				"maximum":  100,
			},

			"priority": bson.M{
				"bsonType": "string",
				"enum": []string{
					"high",
					"normal",
					"low",
				},
			},

			"calculated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var RecommendationValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"group_id",
			"vehicle_id",
			"type",
			"title",
			"severity",
			"status",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"group_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"vehicle_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"type": bson.M{
				"bsonType": "string",
				"enum": []string{
					"usage_imbalance",
					"excessive_cancellations",
					"underuse_nudge",
				},
			},

			"title": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 200,
			},

			"severity": bson.M{
				"bsonType": "string",
				"enum": []string{
					"info",
					"warning",
					"critical",
				},
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"active",
					"read",
					"resolved",
					"dismissed",
				},
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
