package monday

// Every document takes its inputs as variables; nothing is interpolated.
const (
	boardsPageSize = 100
	itemsPageSize  = 500

	queryBoards = `query ($limit: Int!, $page: Int!) {
  boards(limit: $limit, page: $page) { id name }
}`

	mutationDuplicateBoard = `mutation ($boardId: ID!, $name: String!) {
  duplicate_board(board_id: $boardId, duplicate_type: duplicate_board_with_structure, board_name: $name) {
    board { id name }
  }
}`

	queryColumns = `query ($boardId: ID!) {
  boards(ids: [$boardId]) { columns { id title } }
}`

	queryGroups = `query ($boardId: ID!) {
  boards(ids: [$boardId]) { groups { id title } }
}`

	mutationCreateGroup = `mutation ($boardId: ID!, $name: String!) {
  create_group(board_id: $boardId, group_name: $name) { id }
}`

	queryItemsPage = `query ($boardId: ID!, $limit: Int!) {
  boards(ids: [$boardId]) {
    items_page(limit: $limit) {
      cursor
      items { id name group { id } }
    }
  }
}`

	queryNextItemsPage = `query ($cursor: String!, $limit: Int!) {
  next_items_page(cursor: $cursor, limit: $limit) {
    cursor
    items { id name group { id } }
  }
}`

	mutationCreateItem = `mutation ($boardId: ID!, $groupId: String!, $name: String!) {
  create_item(board_id: $boardId, group_id: $groupId, item_name: $name) { id }
}`

	queryColumnValues = `query ($itemId: ID!, $columnIds: [String!]) {
  items(ids: [$itemId]) { column_values(ids: $columnIds) { id text } }
}`

	mutationChangeColumnValues = `mutation ($boardId: ID!, $itemId: ID!, $values: JSON!) {
  change_multiple_column_values(board_id: $boardId, item_id: $itemId, column_values: $values) { id }
}`
)
