package workflow

import (
	"context"
	"fmt"

	apperrors "github.com/foreman-dev/foreman/pkg/errors"
	"github.com/foreman-dev/foreman/pkg/store"
)

const resourceDialoguePrompt = `You are in a direct dialogue with the user, helping them to add a new resource to a project as part of a project management application.
Speak in the second person, as if in conversation with the user.
A resource is defined as an individual who contributes to a project by completing tasks within the project.
A resource has a first name (required), last name (optional), and contact (required).

Using your knowledge of what a resource is, help the user to add the new resource.
You must not add any details that the user does not explicitly mention, such as specific names.

The resource's first name must be properly capitalized as a proper noun.
The resource's last name must be properly capitalized as a proper noun. You must ask the user for the resource's last name, but it is permissible that they do not provide it.
The resource's contact should preferably be an email but can be any means of communication.
The resource's contact cannot be the same as any existing resources' contacts.
Ask the user for a new contact if they enter one that exists already. This is the one you should refer to at all times.

Once you have confirmed that the resource has been added, finish execution.
Do not ask any followup questions at this point.
You are not permitted to tell the user that the resource has been added. You may only provide the information you have and ask for confirmation that it is correct.`

// ResourceMaker registers a new resource
func ResourceMaker() *Definition {
	addResource := Tool{
		Name:        "add_resource",
		Description: "Loads provided first name, last name, and contact into a new resource to be created.",
		Parameters: schema(nil, map[string]any{
			"first_name": stringProp("The first name of the new resource."),
			"last_name":  stringProp("The last name of the new resource."),
			"contact":    stringProp("The contact of the new resource, preferably an email."),
		}),
		Run: func(ctx context.Context, st *State, db store.Querier, args map[string]any) (string, error) {
			firstName := prefer(stringArg(args, "first_name"), st.Slot("first_name"))
			lastName := prefer(stringArg(args, "last_name"), st.Slot("last_name"))
			contact := prefer(stringArg(args, "contact"), st.Slot("contact"))

			if st.HasListed("existing_contacts", contact) {
				return "", apperrors.NewValidation(
					"Resource with contact %s already exists. Please enter a valid contact.", contact)
			}

			st.SetSlot("first_name", firstName)
			st.SetSlot("last_name", lastName)
			st.SetSlot("contact", contact)
			return fmt.Sprintf("Updated first name to: %s\nUpdated last name to: %s\nUpdated contact to: %s",
				firstName, lastName, contact), nil
		},
	}

	return &Definition{
		Kind:  "resource_maker",
		Label: "adding a new resource",
		LoadContext: func(ctx context.Context, st *State, db store.Querier) error {
			rows, err := db.Select(ctx, "SELECT contact FROM resources")
			if err != nil {
				return err
			}
			st.SetList("existing_contacts", store.Column(rows, 0))
			return nil
		},
		DialoguePrompt: func(st *State) string { return resourceDialoguePrompt },
		DialogueTools:  []Tool{addResource, finishTool("resource creation dialogue")},
		Commit: func(ctx context.Context, st *State, db store.Querier) (string, error) {
			err := db.Execute(ctx,
				"INSERT INTO resources(first_name, last_name, contact) VALUES(!p1, !p2, !p3)",
				st.Slot("first_name"), st.Slot("last_name"), st.Slot("contact"))
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("New resource added with\nFirst Name: %s\nLast Name: %s\nContact: %s",
				st.Slot("first_name"), st.Slot("last_name"), st.Slot("contact")), nil
		},
		Reportable: []string{"first_name", "last_name", "contact"},
	}
}
