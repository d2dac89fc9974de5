package main

import (
	"fmt"
	"strconv"

	"github.com/Veraticus/spice-ledger/internal/cli"
	"github.com/Veraticus/spice-ledger/internal/common"
	"github.com/Veraticus/spice-ledger/internal/model"
	"github.com/spf13/cobra"
)

func categoriesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Manage categories",
		Long:  `List, add, update, and delete the categories rules assign to transactions.`,
	}

	cmd.AddCommand(listCategoriesCmd())
	cmd.AddCommand(addCategoryCmd())
	cmd.AddCommand(updateCategoryCmd())
	cmd.AddCommand(deleteCategoryCmd())

	return cmd
}

func listCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			categories, err := store.GetCategories(ctx)
			if err != nil {
				return fmt.Errorf("failed to get categories: %w", err)
			}
			if len(categories) == 0 {
				cmd.Println(cli.InfoStyle.Render("No categories found. Use 'spice categories add' to create one."))
				return nil
			}

			rows := make([][]string, 0, len(categories))
			for _, c := range categories {
				rows = append(rows, []string{strconv.Itoa(c.ID), c.Name, string(c.Type), c.Description})
			}
			cmd.Println(cli.RenderTable([]string{"ID", "NAME", "TYPE", "DESCRIPTION"}, rows))
			return nil
		},
	}
}

func addCategoryCmd() *cobra.Command {
	var description, categoryType string
	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			category, err := store.CreateCategory(ctx, args[0], description, model.CategoryType(categoryType))
			if err != nil {
				return fmt.Errorf("failed to create category: %w", err)
			}
			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Created category %q (ID %d)", category.Name, category.ID)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "category description")
	cmd.Flags().StringVarP(&categoryType, "type", "t", string(model.CategoryTypeExpense), "category type (expense, income, system)")
	return cmd
}

func updateCategoryCmd() *cobra.Command {
	var name, description string
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Rename or describe a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: invalid category id %q", common.ErrInvalidInput, args[0])
			}
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			current, err := store.GetCategoryByID(ctx, id)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("name") {
				name = current.Name
			}
			if !cmd.Flags().Changed("description") {
				description = current.Description
			}
			if err := store.UpdateCategory(ctx, id, name, description); err != nil {
				return fmt.Errorf("failed to update category: %w", err)
			}
			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Updated category %d", id)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "new name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "new description")
	return cmd
}

func deleteCategoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Deactivate a category",
		Long:  `Categories are soft-deleted; transactions keep their category text.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("%w: invalid category id %q", common.ErrInvalidInput, args[0])
			}
			ctx := cmd.Context()
			store, err := initStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteCategory(ctx, id); err != nil {
				return err
			}
			cmd.Println(cli.FormatSuccess(fmt.Sprintf("Deleted category %d", id)))
			return nil
		},
	}
}
