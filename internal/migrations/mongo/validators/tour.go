package validators

import "go.mongodb.org/mongo-driver/bson"

var TourValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"vendor_id",
			"name",
			"currency",
			"variants",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"name": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 200,
			},

			"currency": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 3,
			},

			"variants": bson.M{
				"bsonType": "array",
				"minItems": 1,
				"items": bson.M{
					"bsonType": "object",
					"required": []string{"id", "name", "price", "people_count", "inventory"},
					"properties": bson.M{
						"price":        bson.M{"bsonType": integer, "minimum": 0},
						"people_count": bson.M{"bsonType": integer, "minimum": 1},
						"inventory": bson.M{
							"bsonType": "object",
							"properties": bson.M{
								"qty_on_hand":   bson.M{"bsonType": integer, "minimum": 0},
								"qty_committed": bson.M{"bsonType": integer, "minimum": 0},
							},
						},
					},
				},
			},
		},
	},
}
