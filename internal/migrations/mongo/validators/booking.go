package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"code",
			"customer",
			"vendor_id",
			"tour_id",
			"assignments",
			"status",
			"payment",
			"status_log",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"code": bson.M{
				"bsonType": "string",
				"pattern":  `^TB-[A-Z0-9]{6}$`,
			},

			"customer": bson.M{
				"bsonType": "object",
				"required": []string{"email"},
				"properties": bson.M{
					"email": bson.M{"bsonType": "string", "minLength": 3},
				},
			},

			"assignments": bson.M{
				"bsonType": "array",
				"minItems": 1,
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"session_id", "tickets"},
				},
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"AWAITING_PAYMENT",
					"COMPLETED",
					"CANCELLED",
				},
			},

			"payment": bson.M{
				"bsonType": "object",
				"required": []string{"amount", "currency"},
				"properties": bson.M{
					"amount":       bson.M{"bsonType": integer, "minimum": 0},
					"platform_fee": bson.M{"bsonType": integer, "minimum": 0},
					"currency":     bson.M{"bsonType": "string", "minLength": 3, "maxLength": 3},
				},
			},

			"status_log": bson.M{
				"bsonType": "array",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

var OrderValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"booking_id", "amount", "currency", "status", "created_at"},
		"additionalProperties": true,

		"properties": bson.M{
			"booking_id": bson.M{"bsonType": "string", "minLength": 1},
			"amount":     bson.M{"bsonType": integer, "minimum": 0},
			"status": bson.M{
				"bsonType": "string",
				"enum":     []string{"PENDING", "PAID", "CANCELLED", "REFUNDED"},
			},
			"created_at": bson.M{"bsonType": "date"},
		},
	},
}
