package testutil

import (
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/roach88/rfsync/internal/domain"
)

// Author, Book and Cover form the in-memory library used by package tests.
// Authors reference each other through Mentor, so graphs may be cyclic.
type Author struct {
	ID      int64
	Version int64
	Name    string
	Mentor  *Author
	Books   []*Book
}

type Book struct {
	ID        int64
	Version   int64
	Title     string
	Author    *Author
	Tags      []string
	Cover     *Cover
	Published time.Time
}

// Cover is a value type.
type Cover struct {
	Color string
	Pages int
}

// Catalog is the service instance behind non-static catalog methods.
type Catalog struct {
	lib *Library
}

// Library is an in-memory backing store with a matching domain table.
// It is not safe for concurrent use.
type Library struct {
	Table *domain.Table

	authors map[int64]*Author
	books   map[int64]*Book
	nextID  int64

	// Finds counts calls to the finders.
	Finds int
}

// Library tokens.
const (
	LibraryFactory = "LibraryFactory"
	AuthorToken    = "Author"
	BookToken      = "Book"
	CoverToken     = "Cover"
)

// NewLibrary returns an empty library. It panics if the table does not
// build, which only happens when this file is broken.
func NewLibrary() *Library {
	l := &Library{
		authors: make(map[int64]*Author),
		books:   make(map[int64]*Book),
	}
	table, err := l.Builder().Build()
	if err != nil {
		panic(fmt.Sprintf("testutil: library table: %v", err))
	}
	l.Table = table
	return l
}

// AddAuthor stores a new author.
func (l *Library) AddAuthor(name string) *Author {
	a := &Author{Name: name}
	l.Persist(a)
	return a
}

// AddBook stores a new book by a.
func (l *Library) AddBook(title string, a *Author) *Book {
	b := &Book{Title: title, Author: a}
	l.Persist(b)
	if a != nil {
		a.Books = append(a.Books, b)
	}
	return b
}

// Persist stores obj, assigning an id on first store and bumping its version.
func (l *Library) Persist(obj any) {
	switch o := obj.(type) {
	case *Author:
		if o.ID == 0 {
			l.nextID++
			o.ID = l.nextID
		}
		o.Version++
		l.authors[o.ID] = o
	case *Book:
		if o.ID == 0 {
			l.nextID++
			o.ID = l.nextID
		}
		o.Version++
		l.books[o.ID] = o
	}
}

// Delete removes obj from the store.
func (l *Library) Delete(obj any) {
	switch o := obj.(type) {
	case *Author:
		delete(l.authors, o.ID)
	case *Book:
		delete(l.books, o.ID)
	}
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int64:
		return n, true
	case int:
		return int64(n), true
	}
	return 0, false
}

// Builder returns the library's table registrations, for tests that extend
// them.
func (l *Library) Builder() *domain.Builder {
	findAuthor := &domain.Method{Name: "findAuthor", Static: true, Params: []domain.TypeRef{domain.IntType},
		Invoke: func(_ any, args []any) (any, error) {
			l.Finds++
			id, _ := toInt64(args[0])
			if a, ok := l.authors[id]; ok {
				return a, nil
			}
			return nil, nil
		}}
	findBook := &domain.Method{Name: "findBook", Static: true, Params: []domain.TypeRef{domain.IntType},
		Invoke: func(_ any, args []any) (any, error) {
			l.Finds++
			id, _ := toInt64(args[0])
			if b, ok := l.books[id]; ok {
				return b, nil
			}
			return nil, nil
		}}
	persist := &domain.Method{Name: "persist", Return: domain.VoidType,
		Invoke: func(receiver any, _ []any) (any, error) {
			l.Persist(receiver)
			return nil, nil
		}}
	remove := &domain.Method{Name: "remove", Return: domain.VoidType,
		Invoke: func(receiver any, _ []any) (any, error) {
			l.Delete(receiver)
			return nil, nil
		}}

	author := domain.ProxyOf("AuthorProxy")
	book := domain.ProxyOf("BookProxy")

	return domain.NewBuilder().
		Domain(domain.DomainType{
			Name:   "Author",
			GoType: reflect.TypeFor[*Author](),
			New:    func() any { return &Author{} },
			Properties: map[string]domain.Accessor{
				"id":      domain.NonZero(domain.IntType, func(a *Author) int64 { return a.ID }),
				"version": domain.NonZero(domain.IntType, func(a *Author) int64 { return a.Version }),
				"name":    domain.Field(domain.StringType, func(a *Author) string { return a.Name }, func(a *Author, v string) { a.Name = v }),
				"mentor":  domain.Field(author, func(a *Author) *Author { return a.Mentor }, func(a *Author, v *Author) { a.Mentor = v }),
				"books":   domain.Field(domain.ListOf(book), func(a *Author) []*Book { return a.Books }, func(a *Author, v []*Book) { a.Books = v }),
			},
			Methods: map[string]*domain.Method{"persist": persist, "remove": remove},
			Find:    findAuthor,
		}).
		Domain(domain.DomainType{
			Name:   "Book",
			GoType: reflect.TypeFor[*Book](),
			New:    func() any { return &Book{} },
			Properties: map[string]domain.Accessor{
				"id":        domain.NonZero(domain.IntType, func(b *Book) int64 { return b.ID }),
				"version":   domain.NonZero(domain.IntType, func(b *Book) int64 { return b.Version }),
				"title":     domain.Field(domain.StringType, func(b *Book) string { return b.Title }, func(b *Book, v string) { b.Title = v }),
				"author":    domain.Field(author, func(b *Book) *Author { return b.Author }, func(b *Book, v *Author) { b.Author = v }),
				"tags":      domain.Field(domain.ListOf(domain.StringType), func(b *Book) []string { return b.Tags }, func(b *Book, v []string) { b.Tags = v }),
				"cover":     domain.Field(domain.ProxyOf("CoverProxy"), func(b *Book) *Cover { return b.Cover }, func(b *Book, v *Cover) { b.Cover = v }),
				"published": domain.Field(domain.DateType, func(b *Book) time.Time { return b.Published }, func(b *Book, v time.Time) { b.Published = v }),
			},
			Methods: map[string]*domain.Method{"persist": persist, "remove": remove},
			Find:    findBook,
		}).
		Domain(domain.DomainType{
			Name:   "Cover",
			GoType: reflect.TypeFor[*Cover](),
			New:    func() any { return &Cover{} },
			Properties: map[string]domain.Accessor{
				"color": domain.Field(domain.StringType, func(c *Cover) string { return c.Color }, func(c *Cover, v string) { c.Color = v }),
				"pages": domain.Field(domain.IntType, func(c *Cover) int { return c.Pages }, func(c *Cover, v int) { c.Pages = v }),
			},
		}).
		Proxy(domain.ProxyType{Token: AuthorToken, Name: "AuthorProxy", Domain: "Author", Properties: []domain.Property{
			{Name: "name", Type: domain.StringType},
			{Name: "mentor", Type: author},
			{Name: "books", Type: domain.ListOf(book)},
		}}).
		Proxy(domain.ProxyType{Token: BookToken, Name: "BookProxy", Domain: "Book", Properties: []domain.Property{
			{Name: "title", Type: domain.StringType},
			{Name: "author", Type: author},
			{Name: "tags", Type: domain.ListOf(domain.StringType)},
			{Name: "cover", Type: domain.ProxyOf("CoverProxy")},
			{Name: "published", Type: domain.DateType},
		}}).
		Proxy(domain.ProxyType{Token: CoverToken, Name: "CoverProxy", Domain: "Cover", Kind: domain.ValueProxy, Properties: []domain.Property{
			{Name: "color", Type: domain.StringType},
			{Name: "pages", Type: domain.IntType},
		}}).
		Service(domain.Service{
			Name: "Catalog",
			New:  func() any { return &Catalog{lib: l} },
			Methods: map[string]*domain.Method{
				"authors": {Name: "authors", Static: true, Return: domain.ListOf(author),
					Invoke: func(_ any, _ []any) (any, error) {
						out := make([]*Author, 0, len(l.authors))
						for id := int64(1); id <= l.nextID; id++ {
							if a, ok := l.authors[id]; ok {
								out = append(out, a)
							}
						}
						return out, nil
					}},
				"author": {Name: "author", Static: true, Params: []domain.TypeRef{domain.IntType}, Return: author,
					Invoke: func(_ any, args []any) (any, error) {
						id, _ := toInt64(args[0])
						return l.authors[id], nil
					}},
				"draft": {Name: "draft", Static: true, Params: []domain.TypeRef{domain.StringType}, Return: book,
					Invoke: func(_ any, args []any) (any, error) {
						title, _ := args[0].(string)
						return &Book{Title: title, Cover: &Cover{Color: "red", Pages: 10}}, nil
					}},
				"fail": {Name: "fail", Static: true, Params: []domain.TypeRef{domain.StringType}, Return: domain.VoidType,
					Invoke: func(_ any, args []any) (any, error) {
						msg, _ := args[0].(string)
						return nil, errors.New(msg)
					}},
				"describe": {Name: "describe", Static: true, Params: []domain.TypeRef{domain.IDOf("AuthorProxy")}, Return: domain.StringType,
					Invoke: func(_ any, args []any) (any, error) {
						a, ok := args[0].(*Author)
						if !ok || a == nil {
							return "gone", nil
						}
						return a.Name, nil
					}},
				"rename": {Name: "rename", Static: true, Params: []domain.TypeRef{author, domain.StringType}, Return: author,
					Invoke: func(_ any, args []any) (any, error) {
						a := args[0].(*Author)
						a.Name, _ = args[1].(string)
						l.Persist(a)
						return a, nil
					}},
				"count": {Name: "count", Return: domain.IntType,
					Invoke: func(receiver any, _ []any) (any, error) {
						c := receiver.(*Catalog)
						return len(c.lib.books), nil
					}},
			},
		}).
		Context(domain.Context{Name: "CatalogRequest", Service: "Catalog"}).
		Context(domain.Context{Name: "AuthorRequest", Service: "Catalog"}).
		Context(domain.Context{Name: "BookRequest", Service: "Catalog"}).
		Operation(domain.Operation{Context: "CatalogRequest", Method: "authors", Return: domain.ListOf(author)}).
		Operation(domain.Operation{Context: "CatalogRequest", Method: "author", Params: []domain.TypeRef{domain.IntType}, Return: author}).
		Operation(domain.Operation{Context: "CatalogRequest", Method: "draft", Params: []domain.TypeRef{domain.StringType}, Return: book}).
		Operation(domain.Operation{Context: "CatalogRequest", Method: "fail", Params: []domain.TypeRef{domain.StringType}, Return: domain.VoidType}).
		Operation(domain.Operation{Context: "CatalogRequest", Method: "describe", Params: []domain.TypeRef{domain.IDOf("AuthorProxy")}, Return: domain.StringType}).
		Operation(domain.Operation{Context: "CatalogRequest", Method: "rename", Params: []domain.TypeRef{author, domain.StringType}, Return: author}).
		Operation(domain.Operation{Context: "CatalogRequest", Method: "count", Return: domain.IntType}).
		Operation(domain.Operation{Context: "AuthorRequest", Method: "persist", Instance: true, Receiver: "AuthorProxy", Return: domain.VoidType}).
		Operation(domain.Operation{Context: "AuthorRequest", Method: "remove", Instance: true, Receiver: "AuthorProxy", Return: domain.VoidType}).
		Operation(domain.Operation{Context: "BookRequest", Method: "persist", Instance: true, Receiver: "BookProxy", Return: domain.VoidType}).
		Factory(LibraryFactory, "CatalogRequest", "AuthorRequest", "BookRequest")
}
