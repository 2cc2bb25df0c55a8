package model

import "time"

type Professional struct {
	ID         string   `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name       string   `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Categories []string `json:"categories" bson:"categories" validate:"required,min=1,dive,min=2,max=50"`
	Active     bool     `json:"active" bson:"active"`
}

func (p *Professional) OffersCategory(category string) bool {
	for _, c := range p.Categories {
		if c == category {
			return true
		}
	}
	return false
}

type Service struct {
	ID          string `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Name        string `json:"name" bson:"name" validate:"required,min=2,max=100"`
	Category    string `json:"category" bson:"category" validate:"required,min=2,max=50"`
	DurationMin int    `json:"duration_min" bson:"duration_min" validate:"required,min=1,max=600"`
}

type BlockingInterval struct {
	ID             string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	ProfessionalID string    `json:"professional_id" bson:"professional_id" validate:"required,mongodb"`
	Start          time.Time `json:"start" bson:"start" validate:"required"`
	End            time.Time `json:"end" bson:"end" validate:"required,gtfield=Start"`
	Reason         string    `json:"reason,omitempty" bson:"reason,omitempty" validate:"omitempty,max=200"`
}

type Holiday struct {
	ID   string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	Date time.Time `json:"date" bson:"date" validate:"required"`
	Name string    `json:"name" bson:"name" validate:"required,min=2,max=100"`
}

// BusinessHours holds the opening window for one weekday. Open and Close
// are local wall-clock times in HH:MM form; a weekday without a document
// is closed.
type BusinessHours struct {
	Weekday int    `json:"weekday" bson:"_id" validate:"min=0,max=6"`
	Open    string `json:"open" bson:"open" validate:"required,len=5"`
	Close   string `json:"close" bson:"close" validate:"required,len=5"`
}
