package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/jordansnyder/maestra-core/internal/domain"
	"github.com/jordansnyder/maestra-core/internal/stateengine"
	"github.com/jordansnyder/maestra-core/internal/store"
)

func (s *Server) registerEntityRoutes() {
	// Static prefixes must be registered before the {id} catch-all below,
	// since gorilla/mux matches in registration order.
	s.router.HandleFunc("/entities/types", s.handleListEntityTypes).Methods(http.MethodGet)
	s.router.HandleFunc("/entities/types", s.handleCreateEntityType).Methods(http.MethodPost)
	s.router.HandleFunc("/entities/types/by-name/{name}", s.handleGetEntityTypeByName).Methods(http.MethodGet)
	s.router.HandleFunc("/entities/types/{id}", s.handleGetEntityType).Methods(http.MethodGet)

	s.router.HandleFunc("/entities/tree", s.handleEntityTree).Methods(http.MethodGet)
	s.router.HandleFunc("/entities/by-slug/{slug}", s.handleGetEntityBySlug).Methods(http.MethodGet)

	s.router.HandleFunc("/entities", s.handleListEntities).Methods(http.MethodGet)
	s.router.HandleFunc("/entities", s.handleCreateEntity).Methods(http.MethodPost)

	s.router.HandleFunc("/entities/{id}/ancestors", s.handleEntityAncestors).Methods(http.MethodGet)
	s.router.HandleFunc("/entities/{id}/descendants", s.handleEntityDescendants).Methods(http.MethodGet)
	s.router.HandleFunc("/entities/{id}/siblings", s.handleEntitySiblings).Methods(http.MethodGet)

	s.router.HandleFunc("/entities/{id}", s.handleGetEntity).Methods(http.MethodGet)
	s.router.HandleFunc("/entities/{id}", s.handleUpdateEntity).Methods(http.MethodPut)
	s.router.HandleFunc("/entities/{id}", s.handleDeleteEntity).Methods(http.MethodDelete)
}

func (s *Server) handleListEntityTypes(w http.ResponseWriter, r *http.Request) {
	types, err := s.store.ListEntityTypes(r.Context())
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, types)
}

func (s *Server) handleCreateEntityType(w http.ResponseWriter, r *http.Request) {
	var et domain.EntityType
	if err := decodeJSONBody(r, &et); err != nil {
		s.writeError(w, err)

		return
	}

	if err := s.store.CreateEntityType(r.Context(), &et); err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusCreated, et)
}

func (s *Server) handleGetEntityTypeByName(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	et, err := s.store.GetEntityTypeByName(r.Context(), name)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, et)
}

func (s *Server) handleGetEntityType(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	et, err := s.store.GetEntityType(r.Context(), id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, et)
}

func (s *Server) handleListEntities(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f := store.EntityFilter{
		TypeID:   q.Get("type_id"),
		ParentID: q.Get("parent_id"),
		Search:   q.Get("search"),
	}

	if tags := q["tags"]; len(tags) > 0 {
		f.Tags = tags
	}

	if limit, err := strconv.Atoi(q.Get("limit")); err == nil {
		f.Limit = limit
	}

	if offset, err := strconv.Atoi(q.Get("offset")); err == nil {
		f.Offset = offset
	}

	entities, err := s.store.ListEntities(r.Context(), f)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, entities)
}

func (s *Server) handleCreateEntity(w http.ResponseWriter, r *http.Request) {
	var e domain.Entity
	if err := decodeJSONBody(r, &e); err != nil {
		s.writeError(w, err)

		return
	}

	if e.State == nil {
		if et, err := s.store.GetEntityType(r.Context(), e.TypeID); err == nil {
			// Seed from the type's default_state; DeepMerge against an
			// empty dst also clones it, so new entities never alias the
			// catalog's shared map.
			e.State = stateengine.DeepMerge(domain.JSON{}, et.DefaultState)
		}
	}

	if err := s.store.CreateEntity(r.Context(), &e); err != nil {
		s.writeError(w, err)

		return
	}

	s.engine.EmitLifecycle("entity_created", e.ID, e.Slug, e.TypeID, nil)

	writeJSON(w, http.StatusCreated, e)
}

func (s *Server) handleGetEntity(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	e, err := s.store.GetEntity(r.Context(), id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeEntityWithChildren(w, r, e)
}

func (s *Server) handleGetEntityBySlug(w http.ResponseWriter, r *http.Request) {
	slug := mux.Vars(r)["slug"]

	e, err := s.store.GetEntityBySlug(r.Context(), slug)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeEntityWithChildren(w, r, e)
}

func (s *Server) writeEntityWithChildren(w http.ResponseWriter, r *http.Request, e *domain.Entity) {
	if r.URL.Query().Get("include_children") != "true" {
		writeJSON(w, http.StatusOK, e)

		return
	}

	children, err := s.store.Descendants(r.Context(), e.ID, 1)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entity":   e,
		"children": children,
	})
}

func (s *Server) handleUpdateEntity(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var e domain.Entity
	if err := decodeJSONBody(r, &e); err != nil {
		s.writeError(w, err)

		return
	}

	e.ID = id

	if err := s.store.UpdateEntity(r.Context(), &e); err != nil {
		s.writeError(w, err)

		return
	}

	s.engine.EmitLifecycle("entity_updated", e.ID, e.Slug, e.TypeID, nil)

	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleDeleteEntity(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	cascade := r.URL.Query().Get("cascade") == "true"

	e, err := s.store.GetEntity(r.Context(), id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	if err := s.store.DeleteEntity(r.Context(), id, cascade); err != nil {
		s.writeError(w, err)

		return
	}

	s.engine.EmitLifecycle("entity_deleted", e.ID, e.Slug, e.TypeID, nil)

	writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleEntityAncestors(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	out, err := s.store.Ancestors(r.Context(), id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEntityDescendants(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	maxDepth, _ := strconv.Atoi(r.URL.Query().Get("max_depth"))

	out, err := s.store.Descendants(r.Context(), id, maxDepth)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleEntitySiblings(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	out, err := s.store.Siblings(r.Context(), id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	writeJSON(w, http.StatusOK, out)
}

// entityTreeNode is the recursive shape GET /entities/tree returns.
type entityTreeNode struct {
	domain.Entity
	Children []*entityTreeNode `json:"children,omitempty"`
}

func (s *Server) handleEntityTree(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	rootID := q.Get("root_id")
	typeID := q.Get("entity_type")

	maxDepth, _ := strconv.Atoi(q.Get("max_depth"))

	var (
		all []domain.Entity
		err error
	)

	// Descendants walks the whole subtree under rootID (not just its
	// direct children), which buildEntityTree's recursion needs to nest
	// more than one level deep.
	if rootID != "" {
		all, err = s.store.Descendants(r.Context(), rootID, maxDepth)
	} else {
		all, err = s.store.ListEntities(r.Context(), store.EntityFilter{TypeID: typeID})
	}

	if err != nil {
		s.writeError(w, err)

		return
	}

	if rootID != "" && typeID != "" {
		filtered := all[:0]

		for _, e := range all {
			if e.TypeID == typeID {
				filtered = append(filtered, e)
			}
		}

		all = filtered
	}

	roots := buildEntityTree(all, rootID, maxDepth)

	writeJSON(w, http.StatusOK, roots)
}

// buildEntityTree groups entities by parent id and nests them starting
// from rootID (or every entity with no parent, if rootID is empty),
// bounded to maxDepth levels (0 = unbounded).
func buildEntityTree(entities []domain.Entity, rootID string, maxDepth int) []*entityTreeNode {
	byParent := make(map[string][]domain.Entity)

	for _, e := range entities {
		key := ""
		if e.ParentID != nil {
			key = *e.ParentID
		}

		byParent[key] = append(byParent[key], e)
	}

	var build func(parentID string, depth int) []*entityTreeNode

	build = func(parentID string, depth int) []*entityTreeNode {
		if maxDepth > 0 && depth > maxDepth {
			return nil
		}

		children := byParent[parentID]
		out := make([]*entityTreeNode, 0, len(children))

		for _, e := range children {
			out = append(out, &entityTreeNode{Entity: e, Children: build(e.ID, depth+1)})
		}

		return out
	}

	return build(rootID, 1)
}
