// Package graph exposes the catalog over GraphQL. Resolvers go through the
// same ListingService as the REST handlers, so review visibility is identical
// on both surfaces.
package graph

import (
	"strconv"

	"github.com/graphql-go/graphql"

	"github.com/shashiranjanraj/phonedeals/app/models"
	"github.com/shashiranjanraj/phonedeals/app/services"
	"github.com/shashiranjanraj/phonedeals/pkg/apperr"
	"github.com/shashiranjanraj/phonedeals/pkg/auth"
	gql "github.com/shashiranjanraj/phonedeals/pkg/graphql"
)

var partyType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Party",
	Fields: graphql.Fields{
		"id":   &graphql.Field{Type: graphql.Int},
		"name": &graphql.Field{Type: graphql.String},
	},
})

var reviewType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Review",
	Fields: graphql.Fields{
		"id":        &graphql.Field{Type: graphql.String},
		"reviewer":  &graphql.Field{Type: partyType},
		"rating":    &graphql.Field{Type: graphql.Int},
		"comment":   &graphql.Field{Type: graphql.String},
		"hidden":    &graphql.Field{Type: graphql.Boolean},
		"canToggle": &graphql.Field{Type: graphql.Boolean},
		"createdAt": &graphql.Field{Type: graphql.DateTime},
	},
})

var listingType = graphql.NewObject(graphql.ObjectConfig{
	Name: "Listing",
	Fields: graphql.Fields{
		"id":    &graphql.Field{Type: graphql.Int},
		"title": &graphql.Field{Type: graphql.String},
		"brand": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return string(p.Source.(services.ListingView).Brand), nil
			},
		},
		"image": &graphql.Field{Type: graphql.String},
		"stock": &graphql.Field{Type: graphql.Int},
		"price": &graphql.Field{
			Type: graphql.String,
			Resolve: func(p graphql.ResolveParams) (any, error) {
				return p.Source.(services.ListingView).Price.StringFixed(2), nil
			},
		},
		"seller":    &graphql.Field{Type: partyType},
		"disabled":  &graphql.Field{Type: graphql.Boolean},
		"reviews":   &graphql.Field{Type: graphql.NewList(reviewType)},
		"createdAt": &graphql.Field{Type: graphql.DateTime},
	},
})

// Schema builds the catalog schema backed by listings.
func Schema(listings *services.ListingService) (graphql.Schema, error) {
	query := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"listings": &graphql.Field{
				Type: graphql.NewList(listingType),
				Args: graphql.FieldConfigArgument{
					"query":  &graphql.ArgumentConfig{Type: graphql.String},
					"brand":  &graphql.ArgumentConfig{Type: graphql.String},
					"seller": &graphql.ArgumentConfig{Type: graphql.Int},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					q := services.CatalogQuery{}
					q.Query, _ = p.Args["query"].(string)
					if b, ok := p.Args["brand"].(string); ok {
						q.Brand = models.Brand(b)
					}
					if s, ok := p.Args["seller"].(int); ok && s > 0 {
						q.Seller = uint(s)
					}
					return listings.Catalog(p.Context, auth.FromCtx(p.Context), q)
				},
			},
			"listing": &graphql.Field{
				Type: listingType,
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					id, err := listingID(p.Args["id"])
					if err != nil {
						return nil, err
					}
					v, err := listings.Get(p.Context, auth.FromCtx(p.Context), id)
					if err != nil {
						return nil, err
					}
					return *v, nil
				},
			},
		},
	})

	mutation := graphql.NewObject(graphql.ObjectConfig{
		Name: "Mutation",
		Fields: graphql.Fields{
			"toggleReview": &graphql.Field{
				Type: reviewType,
				Args: graphql.FieldConfigArgument{
					"listing": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.ID)},
					"review":  &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (any, error) {
					id, err := listingID(p.Args["listing"])
					if err != nil {
						return nil, err
					}
					r, err := listings.ToggleReview(p.Context, auth.FromCtx(p.Context), id, p.Args["review"].(string))
					if err != nil {
						return nil, err
					}
					return *r, nil
				},
			},
		},
	})

	return gql.NewSchema(query, mutation)
}

func listingID(v any) (uint, error) {
	s, _ := v.(string)
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, apperr.NotFound("listing not found")
	}
	return uint(id), nil
}
