package api

import (
	"github.com/google/uuid"

	"github.com/arkivo/arkivo/internal/entity"
	"github.com/arkivo/arkivo/internal/query"
)

type attributePayload struct {
	UUID   string `json:"uuid"`
	Entity string `json:"entity"`
	Key    string `json:"key"`
	Value  string `json:"value"`
}

type linkPayload struct {
	UUID string `json:"uuid"`
	From string `json:"from"`
	To   string `json:"to"`
}

type permissionPayload struct {
	UUID   string `json:"uuid"`
	Role   string `json:"role"`
	Entity string `json:"entity"`
	Name   string `json:"name"`
}

type entityPayload struct {
	UUID        string              `json:"uuid"`
	Kind        string              `json:"kind"`
	Name        string              `json:"name"`
	Attributes  []attributePayload  `json:"attributes"`
	LinksFrom   []linkPayload       `json:"links_from"`
	LinksTo     []linkPayload       `json:"links_to"`
	Permissions []permissionPayload `json:"permissions"`
}

func toEntityPayload(v query.View) entityPayload {
	p := entityPayload{
		UUID:        v.Entity.UUID.String(),
		Kind:        v.Entity.Kind,
		Name:        v.Entity.Name,
		Attributes:  make([]attributePayload, 0, len(v.Attributes)),
		LinksFrom:   make([]linkPayload, 0, len(v.LinksFrom)),
		LinksTo:     make([]linkPayload, 0, len(v.LinksTo)),
		Permissions: make([]permissionPayload, 0, len(v.Permissions)),
	}
	for _, a := range v.Attributes {
		p.Attributes = append(p.Attributes, toAttributePayload(a))
	}
	for _, l := range v.LinksFrom {
		p.LinksFrom = append(p.LinksFrom, toLinkPayload(l))
	}
	for _, l := range v.LinksTo {
		p.LinksTo = append(p.LinksTo, toLinkPayload(l))
	}
	for _, perm := range v.Permissions {
		p.Permissions = append(p.Permissions, toPermissionPayload(perm))
	}
	return p
}

func toAttributePayload(a entity.Attribute) attributePayload {
	return attributePayload{UUID: a.UUID.String(), Entity: a.EntityUUID.String(), Key: a.Key, Value: a.Value}
}

func toLinkPayload(l entity.Link) linkPayload {
	return linkPayload{UUID: l.UUID.String(), From: l.FromUUID.String(), To: l.ToUUID.String()}
}

func toPermissionPayload(p entity.Permission) permissionPayload {
	return permissionPayload{UUID: p.UUID.String(), Role: p.RoleUUID.String(), Entity: p.EntityUUID.String(), Name: p.Name}
}

type createEntityRequest struct {
	Kind      string `json:"kind" validate:"required"`
	Name      string `json:"name" validate:"required"`
	OwnerRole string `json:"owner_role" validate:"required,uuid"`
}

type updateEntityRequest struct {
	Name string `json:"name" validate:"required"`
}

type addAttributeRequest struct {
	Key   string `json:"key" validate:"required"`
	Value string `json:"value" validate:"required"`
}

type linkRequest struct {
	From string `json:"from" validate:"required,uuid"`
	To   string `json:"to" validate:"required,uuid"`
}

type permissionRequest struct {
	Entity string `json:"entity" validate:"required,uuid"`
	Role   string `json:"role" validate:"required,uuid"`
	Name   string `json:"name" validate:"required"`
}

type searchAttributeCriterion struct {
	UUID  string `json:"uuid" validate:"omitempty,uuid"`
	Key   string `json:"key"`
	Value string `json:"value"`
}

type searchLinkFromCriterion struct {
	To string `json:"to" validate:"required,uuid"`
}

type searchLinkToCriterion struct {
	From string `json:"from" validate:"required,uuid"`
}

type searchPermissionCriterion struct {
	UUID   string `json:"uuid" validate:"omitempty,uuid"`
	Role   string `json:"role" validate:"omitempty,uuid"`
	Entity string `json:"entity" validate:"omitempty,uuid"`
	Name   string `json:"name"`
}

type searchRequest struct {
	UUID        string                      `json:"uuid" validate:"omitempty,uuid"`
	Kind        string                      `json:"kind"`
	Name        string                      `json:"name"`
	Attributes  []searchAttributeCriterion  `json:"attributes" validate:"dive"`
	LinksFrom   []searchLinkFromCriterion   `json:"links_from" validate:"dive"`
	LinksTo     []searchLinkToCriterion     `json:"links_to" validate:"dive"`
	Permissions []searchPermissionCriterion `json:"permissions" validate:"dive"`
}

func (req searchRequest) toCriteria() (query.Criteria, error) {
	c := query.Criteria{Kind: req.Kind, Name: req.Name}
	var err error
	if c.UUID, err = parseOptionalUUID(req.UUID); err != nil {
		return query.Criteria{}, err
	}
	for _, a := range req.Attributes {
		id, err := parseOptionalUUID(a.UUID)
		if err != nil {
			return query.Criteria{}, err
		}
		c.Attributes = append(c.Attributes, query.AttributeCriterion{UUID: id, Key: a.Key, Value: a.Value})
	}
	for _, l := range req.LinksFrom {
		to, err := uuid.Parse(l.To)
		if err != nil {
			return query.Criteria{}, err
		}
		c.LinksFrom = append(c.LinksFrom, query.LinkFromCriterion{To: to})
	}
	for _, l := range req.LinksTo {
		from, err := uuid.Parse(l.From)
		if err != nil {
			return query.Criteria{}, err
		}
		c.LinksTo = append(c.LinksTo, query.LinkToCriterion{From: from})
	}
	for _, p := range req.Permissions {
		pc := query.PermissionCriterion{Name: p.Name}
		if pc.UUID, err = parseOptionalUUID(p.UUID); err != nil {
			return query.Criteria{}, err
		}
		if pc.Role, err = parseOptionalUUID(p.Role); err != nil {
			return query.Criteria{}, err
		}
		if pc.Entity, err = parseOptionalUUID(p.Entity); err != nil {
			return query.Criteria{}, err
		}
		c.Permissions = append(c.Permissions, pc)
	}
	return c, nil
}

func parseOptionalUUID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(s)
}
