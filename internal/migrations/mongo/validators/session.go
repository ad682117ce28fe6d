package validators

import "go.mongodb.org/mongo-driver/bson"

var integer = []string{"int", "long"}

var SessionValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"tour_id",
			"date",
			"start_time",
			"end_time",
			"capacity",
			"version",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"tour_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"date": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},

			"start_time": bson.M{
				"bsonType": "string",
				"pattern":  `^([01]\d|2[0-3]):[0-5]\d$`,
			},

			"end_time": bson.M{
				"bsonType": "string",
				"pattern":  `^([01]\d|2[0-3]):[0-5]\d$`,
			},

			"capacity": bson.M{
				"bsonType": "object",
				"required": []string{"max", "current", "remaining", "mode"},
				"properties": bson.M{
					"max":       bson.M{"bsonType": integer, "minimum": 1},
					"current":   bson.M{"bsonType": integer, "minimum": 0},
					"remaining": bson.M{"bsonType": integer, "minimum": 0},
					"mode": bson.M{
						"bsonType": "string",
						"enum":     []string{"PER_PERSON", "PER_TICKET"},
					},
				},
			},

			"bookings": bson.M{
				"bsonType": []string{"array", "null"},
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"booking_id", "tickets"},
				},
			},

			"expires_at": bson.M{
				"bsonType": "date",
			},

			"version": bson.M{
				"bsonType": integer,
				"minimum":  1,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
