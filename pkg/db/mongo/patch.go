package mongo

import (
	"fmt"
	"tourbook/pkg/model"

	"go.mongodb.org/mongo-driver/bson"
)

// UpdateFromPatches translates field patches into a Mongo update document. Every path is
// prefixed with prefix, which may contain a positional filter such as "variants.$[v].".
func UpdateFromPatches(prefix string, patches []model.Patch) (bson.M, error) {
	set := bson.M{}
	unset := bson.M{}
	push := bson.M{}
	inc := bson.M{}

	for _, p := range patches {
		path := prefix + p.Path
		switch p.Op {
		case model.PatchSet:
			set[path] = p.Value
		case model.PatchRemove:
			unset[path] = ""
		case model.PatchAdd:
			push[path] = p.Value
		case model.PatchIncr:
			inc[path] = p.Value
		default:
			return nil, fmt.Errorf("unsupported patch op %q for path %s", p.Op, p.Path)
		}
	}

	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(push) > 0 {
		update["$push"] = push
	}
	if len(inc) > 0 {
		update["$inc"] = inc
	}
	return update, nil
}
