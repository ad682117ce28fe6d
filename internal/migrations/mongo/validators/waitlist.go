package validators

import "go.mongodb.org/mongo-driver/bson"

var WaitlistValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"session_id",
			"customer_email",
			"priority",
			"notification_status",
			"active",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"customer_email": bson.M{
				"bsonType":  "string",
				"minLength": 3,
			},

			"priority": bson.M{
				"bsonType": "date",
			},

			"notification_status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"PENDING",
					"NOTIFIED",
					"EXPIRED",
					"CONVERTED",
					"CANCELLED",
				},
			},

			"active": bson.M{
				"bsonType": "bool",
			},
		},
	},
}
