package validators

import "go.mongodb.org/mongo-driver/bson"

var CheckpointValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"reservation_id",
			"type",
			"status",
			"token",
			"issued_by",
			"issued_at",
			"expires_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id": bson.M{
				"bsonType": "objectId",
			},

			"reservation_id": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"type": bson.M{
				"bsonType": "string",
				"enum": []string{
					"check_in",
					"check_out",
				},
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"scanned",
					"signed",
					"completed",
					"expired",
				},
			},

			"token": bson.M{
				"bsonType":  "string",
				"minLength": 32,
				"maxLength": 32,
			},

			"issued_by": bson.M{
				"bsonType":  "string",
				"minLength": 24,
				"maxLength": 24,
			},

			"issued_at": bson.M{
				"bsonType": "date",
			},

			"expires_at": bson.M{
				"bsonType": "date",
			},

			"signer_name": bson.M{
				"bsonType":  "string",
				"maxLength": 100,
			},

			"notes": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},
		},
	},
}
