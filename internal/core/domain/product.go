package domain

type Product struct {
	ID          string
	Name        string
	Price       int64 // smallest currency unit
	Image       string
	Description string
}
