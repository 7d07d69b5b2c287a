package sqlstore

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/Kerhoff/academybot/internal/models"
)

// Directory answers "who should hear about this" for the notifier
type Directory struct {
	db *sqlx.DB
}

// NewDirectory creates a recipient directory
func NewDirectory(db *sqlx.DB) *Directory {
	return &Directory{db: db}
}

// HeadTrainerChatIDs returns the private chats of all active head trainers
func (d *Directory) HeadTrainerChatIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	query := d.db.Rebind(`SELECT telegram_id FROM users WHERE role = ? AND is_active = ? ORDER BY id`)
	if err := d.db.SelectContext(ctx, &ids, query, models.RoleHeadTrainer, true); err != nil {
		return nil, classify(err, "list head trainer chats")
	}
	return ids, nil
}

// GroupParents returns one contact per child of the group
func (d *Directory) GroupParents(ctx context.Context, groupID int64) ([]models.ParentContact, error) {
	var contacts []models.ParentContact
	query := d.db.Rebind(`
		SELECT c.id AS child_id, c.full_name AS child_name, u.telegram_id AS chat_id
		FROM children c
		JOIN users u ON u.id = c.parent_id
		WHERE c.group_id = ? AND u.is_active = ?
		ORDER BY c.full_name, c.id`)
	if err := d.db.SelectContext(ctx, &contacts, query, groupID, true); err != nil {
		return nil, classify(err, "list group parents")
	}
	return contacts, nil
}

// ChildParent returns the contact of the child's parent
func (d *Directory) ChildParent(ctx context.Context, childID int64) (models.ParentContact, error) {
	var contact models.ParentContact
	query := d.db.Rebind(`
		SELECT c.id AS child_id, c.full_name AS child_name, u.telegram_id AS chat_id
		FROM children c
		JOIN users u ON u.id = c.parent_id
		WHERE c.id = ?`)
	if err := d.db.GetContext(ctx, &contact, query, childID); err != nil {
		return models.ParentContact{}, classify(err, fmt.Sprintf("get parent of child %d", childID))
	}
	return contact, nil
}
