package validators

import "go.mongodb.org/mongo-driver/bson"

// BookingValidator builds the collection schema. taker_id is deliberately
// not required: a giver-created open slot has no requester yet. The note
// bound mirrors the engine's configured maximum so the schema and the
// validator reject at the same length.
func BookingValidator(maxNoteLength int) bson.M {
	return bson.M{
		"$jsonSchema": bson.M{
			"bsonType": "object",
			"required": []string{
				"giver_id",
				"date",
				"start_time",
				"end_time",
				"status",
				"created_at",
			},
			"additionalProperties": true,

			"properties": bson.M{
				"_id": bson.M{
					"bsonType": "objectId",
				},

				"giver_id": bson.M{
					"bsonType":  "string",
					"minLength": 1,
					"maxLength": 64,
				},

				"taker_id": bson.M{
					"bsonType":  "string",
					"minLength": 1,
					"maxLength": 64,
				},

				"date": bson.M{
					"bsonType": "string",
					"pattern":  `^\d{4}-\d{2}-\d{2}$`,
				},

				"start_time": bson.M{
					"bsonType": "string",
					"pattern":  `^([01][0-9]|2[0-3]):[0-5][0-9]$`,
				},

				"end_time": bson.M{
					"bsonType": "string",
					"pattern":  `^([01][0-9]|2[0-3]):[0-5][0-9]$`,
				},

				"status": bson.M{
					"bsonType": "string",
					"enum": []string{
						"DRAFT",
						"AVAILABLE",
						"PENDING",
						"ACCEPTED",
						"REJECTED",
						"CANCELLED",
						"COMPLETED",
					},
				},

				"note": bson.M{
					"bsonType":  "string",
					"maxLength": maxNoteLength,
				},

				"created_at": bson.M{
					"bsonType": "date",
				},

				"updated_at": bson.M{
					"bsonType": "date",
				},

				"deleted_at": bson.M{
					"bsonType": "date",
				},
			},
		},
	}
}
